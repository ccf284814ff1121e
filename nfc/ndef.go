package nfc

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// NDEF record header flags
const (
	ndefFlagMB  = 0x80 // Message Begin
	ndefFlagME  = 0x40 // Message End
	ndefFlagCF  = 0x20 // Chunk Flag
	ndefFlagSR  = 0x10 // Short Record
	ndefFlagIL  = 0x08 // ID Length present
	ndefTNFMask = 0x07
)

// TNF values
const (
	TNFEmpty     byte = 0x00
	TNFWellKnown byte = 0x01
)

// Text record status byte
const (
	textStatusUTF16    = 0x80
	textStatusLangMask = 0x3F
)

// NDEFRecord represents a single NDEF record within a message.
type NDEFRecord struct {
	TNF     byte   // Type Name Format (0x00-0x07)
	Type    []byte // Record type (e.g., "T" for text)
	ID      []byte // Optional record ID
	Payload []byte // Record payload data
}

// IsTextRecord reports whether the record is a well-known "T" record.
func (r *NDEFRecord) IsTextRecord() bool {
	return r.TNF == TNFWellKnown && len(r.Type) == 1 && r.Type[0] == 'T'
}

// GetText extracts text from a Text Record (TNF=0x01, Type='T').
// Returns (text, true) if this is a text record that resolves, or ("", false) otherwise.
func (r *NDEFRecord) GetText() (string, bool) {
	if !r.IsTextRecord() {
		return "", false
	}
	text, _, err := parseTextRecordPayload(r.Payload)
	if err != nil {
		return "", false
	}
	return text, true
}

// EncodeTextRecord creates an NDEF message containing a single UTF-8 Text Record.
func EncodeTextRecord(text, lang string) []byte {
	record := NDEFRecord{
		TNF:     TNFWellKnown,
		Type:    []byte{'T'},
		Payload: MakeTextRecordPayload(text, lang),
	}
	return encodeNDEFRecords([]NDEFRecord{record})
}

// MakeTextRecordPayload creates an NDEF Text Record payload with the specified text and language code.
func MakeTextRecordPayload(text string, lang string) []byte {
	if lang == "" {
		lang = DefaultLanguage
	}
	langCode := []byte(lang)
	if len(langCode) > textStatusLangMask {
		langCode = langCode[:textStatusLangMask]
	}
	payload := make([]byte, 1+len(langCode)+len(text))
	payload[0] = byte(len(langCode)) // UTF-8
	copy(payload[1:], langCode)
	copy(payload[1+len(langCode):], text)
	return payload
}

// parseTextRecordPayload extracts text and language from an NDEF Text Record's payload.
func parseTextRecordPayload(payload []byte) (string, string, error) {
	if len(payload) < 1 {
		return "", "", fmt.Errorf("text record payload too short (status byte missing)")
	}
	status := payload[0]
	langLength := int(status & textStatusLangMask)

	textStart := 1 + langLength
	if textStart > len(payload) {
		return "", "", fmt.Errorf("text record payload too short (language code missing)")
	}
	lang := string(payload[1:textStart])
	textBytes := payload[textStart:]

	if status&textStatusUTF16 == 0 {
		return string(textBytes), lang, nil
	}
	if len(textBytes)%2 != 0 {
		return "", "", fmt.Errorf("invalid UTF-16 text length: %d", len(textBytes))
	}
	// UTF-16 text carries an optional BOM and defaults to big endian.
	decoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(textBytes)
	if err != nil {
		return "", "", fmt.Errorf("decode UTF-16 text: %w", err)
	}
	return string(decoded), lang, nil
}

// parseNDEFRecords parses raw NDEF message bytes into records.
// Records that parsed before a truncation are returned together with the error.
func parseNDEFRecords(ndefMessage []byte) ([]NDEFRecord, error) {
	var records []NDEFRecord
	offset := 0

	for offset < len(ndefMessage) {
		header := ndefMessage[offset]
		me := header&ndefFlagME != 0
		sr := header&ndefFlagSR != 0
		il := header&ndefFlagIL != 0
		tnf := header & ndefTNFMask

		pos := offset + 1

		if pos+1 > len(ndefMessage) {
			return records, fmt.Errorf("truncated type length at offset %d", pos)
		}
		typeLength := int(ndefMessage[pos])
		pos++

		var payloadLength int
		if sr {
			if pos+1 > len(ndefMessage) {
				return records, fmt.Errorf("truncated short payload length at offset %d", pos)
			}
			payloadLength = int(ndefMessage[pos])
			pos++
		} else {
			if pos+4 > len(ndefMessage) {
				return records, fmt.Errorf("truncated payload length at offset %d", pos)
			}
			payloadLength = int(binary.BigEndian.Uint32(ndefMessage[pos : pos+4]))
			pos += 4
		}

		var idLength int
		if il {
			if pos+1 > len(ndefMessage) {
				return records, fmt.Errorf("truncated ID length at offset %d", pos)
			}
			idLength = int(ndefMessage[pos])
			pos++
		}

		end := pos + typeLength + idLength + payloadLength
		if payloadLength < 0 || end > len(ndefMessage) {
			return records, fmt.Errorf("record at offset %d needs %d bytes, %d available", offset, end-offset, len(ndefMessage)-offset)
		}

		record := NDEFRecord{TNF: tnf}
		record.Type = append([]byte(nil), ndefMessage[pos:pos+typeLength]...)
		pos += typeLength
		if idLength > 0 {
			record.ID = append([]byte(nil), ndefMessage[pos:pos+idLength]...)
			pos += idLength
		}
		record.Payload = append([]byte(nil), ndefMessage[pos:pos+payloadLength]...)
		records = append(records, record)

		offset = end
		if me {
			break
		}
	}

	return records, nil
}

// encodeNDEFRecords encodes records into raw NDEF message bytes, setting MB
// on the first record and ME on the last.
func encodeNDEFRecords(records []NDEFRecord) []byte {
	var result []byte

	for i, record := range records {
		payloadLen := len(record.Payload)
		short := payloadLen <= 0xFF
		hasID := len(record.ID) > 0

		header := record.TNF & ndefTNFMask
		if i == 0 {
			header |= ndefFlagMB
		}
		if i == len(records)-1 {
			header |= ndefFlagME
		}
		if short {
			header |= ndefFlagSR
		}
		if hasID {
			header |= ndefFlagIL
		}

		result = append(result, header, byte(len(record.Type)))
		if short {
			result = append(result, byte(payloadLen))
		} else {
			result = binary.BigEndian.AppendUint32(result, uint32(payloadLen))
		}
		if hasID {
			result = append(result, byte(len(record.ID)))
		}
		result = append(result, record.Type...)
		result = append(result, record.ID...)
		result = append(result, record.Payload...)
	}

	return result
}
