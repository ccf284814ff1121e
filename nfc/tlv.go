package nfc

import "encoding/binary"

// TLV types for NDEF
const (
	TLVNull        = 0x00 // Null TLV
	TLVLockCtrl    = 0x01 // Lock Control TLV
	TLVMemCtrl     = 0x02 // Memory Control TLV
	TLVNDEF        = 0x03 // NDEF Message TLV
	TLVProprietary = 0xFD // Proprietary TLV
	TLVTerminator  = 0xFE // Terminator TLV
)

// tlvLongLength marks a 3-byte length field.
const tlvLongLength = 0xFF

// maxShortLength is the largest value a 1-byte TLV length may carry.
const maxShortLength = 0xFE

// tlvLength reads the length field of the TLV whose type byte is at data[0].
// It returns the value length and the offset of the value. ok is false when
// the length field itself is cut off.
func tlvLength(data []byte) (length, valueStart int, ok bool) {
	if len(data) < 2 {
		return 0, 0, false
	}
	if data[1] != tlvLongLength {
		return int(data[1]), 2, true
	}
	if len(data) < 4 {
		return 0, 0, false
	}
	return int(binary.BigEndian.Uint16(data[2:4])), 4, true
}

// scanNDEFMessages walks a TLV stream and returns the value of every NDEF
// Message TLV in order. Control and proprietary TLVs are skipped by their
// length. A value that runs past the end of data is clamped.
func scanNDEFMessages(data []byte) [][]byte {
	var messages [][]byte
	offset := 0

	for offset < len(data) {
		switch data[offset] {
		case TLVNull:
			offset++
			continue
		case TLVTerminator:
			return messages
		}

		length, valueStart, ok := tlvLength(data[offset:])
		if !ok {
			return messages
		}
		start := offset + valueStart
		end := start + length
		if end > len(data) {
			end = len(data)
		}

		if data[offset] == TLVNDEF {
			messages = append(messages, data[start:end])
		}
		offset = end
	}

	return messages
}

// DecodeTextRecords extracts the text of every text record stored in the
// data area raw, in tag order. Records and TLVs that do not resolve are
// skipped; an empty result is not an error.
func DecodeTextRecords(cc CapabilityContainer, raw []byte) ([]string, error) {
	if !cc.IsValid() {
		return nil, NewMalformedTagError("DecodeTextRecords", "malformed tag header")
	}

	texts := []string{}
	for _, message := range scanNDEFMessages(raw) {
		// Truncated messages still yield the records that fit.
		records, _ := parseNDEFRecords(message)
		for i := range records {
			if text, ok := records[i].GetText(); ok {
				texts = append(texts, text)
			}
		}
	}
	return texts, nil
}

// EncodeEnvelope wraps an encoded NDEF message in an NDEF Message TLV,
// appends the terminator and pads with zeros to a multiple of blockSize.
// The padded length always leaves at least one zero byte after the terminator.
func EncodeEnvelope(record []byte, maxDataLength, blockSize int) ([]byte, error) {
	if blockSize <= 0 {
		blockSize = BlockSize
	}

	rawLength := len(record)
	if rawLength > 0xFFFF {
		return nil, NewCapacityError("EncodeEnvelope", rawLength, 0xFFFF)
	}

	// type + short length + terminator, plus one block of margin, rounded down
	envelope := (rawLength + 3 + blockSize) / blockSize * blockSize
	long := rawLength > maxShortLength
	if long {
		envelope += 2
		if rem := envelope % blockSize; rem != 0 {
			envelope += blockSize - rem
		}
	}

	if envelope > maxDataLength {
		return nil, NewCapacityError("EncodeEnvelope", envelope, maxDataLength)
	}

	out := make([]byte, 0, envelope)
	out = append(out, TLVNDEF)
	if long {
		out = append(out, tlvLongLength)
		out = binary.BigEndian.AppendUint16(out, uint16(rawLength))
	} else {
		out = append(out, byte(rawLength))
	}
	out = append(out, record...)
	out = append(out, TLVTerminator)

	return out[:envelope], nil
}
