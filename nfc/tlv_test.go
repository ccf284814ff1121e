package nfc

import (
	"bytes"
	"strings"
	"testing"
)

var validCC = CapabilityContainer{Magic: CCMagic, MajorVersion: 1, MaxDataLength: 48}

func TestEncodeEnvelope_ShortForm(t *testing.T) {
	record := EncodeTextRecord("hi", "en")
	want := []byte{0xD1, 0x01, 0x05, 'T', 0x02, 'e', 'n', 'h', 'i'}
	if !bytes.Equal(record, want) {
		t.Fatalf("Expected record %X, got %X", want, record)
	}

	envelope, err := EncodeEnvelope(record, 48, 4)
	if err != nil {
		t.Fatalf("EncodeEnvelope failed: %v", err)
	}

	expected := append([]byte{0x03, 0x09}, record...)
	expected = append(expected, 0xFE, 0x00, 0x00, 0x00, 0x00)
	if !bytes.Equal(envelope, expected) {
		t.Errorf("Expected %X, got %X", expected, envelope)
	}
	if len(envelope) != 16 {
		t.Errorf("Expected 16 bytes, got %d", len(envelope))
	}
}

func TestEncodeEnvelope_SixByteRecord(t *testing.T) {
	record := []byte{0xD1, 0x01, 0x02, 'T', 0x00, 'x'}
	envelope, err := EncodeEnvelope(record, 48, 4)
	if err != nil {
		t.Fatalf("EncodeEnvelope failed: %v", err)
	}

	expected := []byte{0x03, 0x06, 0xD1, 0x01, 0x02, 'T', 0x00, 'x', 0xFE, 0x00, 0x00, 0x00}
	if !bytes.Equal(envelope, expected) {
		t.Errorf("Expected %X, got %X", expected, envelope)
	}
}

func TestEncodeEnvelope_Lengths(t *testing.T) {
	tests := []struct {
		name      string
		rawLength int
		blockSize int
		want      int
	}{
		{"empty", 0, 4, 4},
		{"one byte", 1, 4, 8},
		{"aligned content", 9, 4, 16},
		{"unaligned content", 10, 4, 16},
		{"largest short", 0xFE, 4, 260},
		{"smallest long", 0xFF, 4, 264},
		{"long rounds up", 0x101, 4, 268},
		{"default block size", 9, 0, 16},
		{"sixteen byte blocks", 20, 16, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope, err := EncodeEnvelope(make([]byte, tt.rawLength), 4096, tt.blockSize)
			if err != nil {
				t.Fatalf("EncodeEnvelope failed: %v", err)
			}
			if len(envelope) != tt.want {
				t.Errorf("Expected %d bytes, got %d", tt.want, len(envelope))
			}
			bs := tt.blockSize
			if bs <= 0 {
				bs = BlockSize
			}
			if len(envelope)%bs != 0 {
				t.Errorf("Envelope length %d is not a multiple of %d", len(envelope), bs)
			}
		})
	}
}

func TestEncodeEnvelope_LongForm(t *testing.T) {
	record := bytes.Repeat([]byte{0xAA}, 300)
	envelope, err := EncodeEnvelope(record, 512, 4)
	if err != nil {
		t.Fatalf("EncodeEnvelope failed: %v", err)
	}

	if !bytes.Equal(envelope[:4], []byte{0x03, 0xFF, 0x01, 0x2C}) {
		t.Errorf("Expected long header 03 FF 01 2C, got %X", envelope[:4])
	}
	if !bytes.Equal(envelope[4:304], record) {
		t.Error("Record bytes not copied after long header")
	}
	if envelope[304] != TLVTerminator {
		t.Errorf("Expected terminator at 304, got %02X", envelope[304])
	}
	for i, b := range envelope[305:] {
		if b != 0 {
			t.Errorf("Expected zero padding at %d, got %02X", 305+i, b)
		}
	}
}

func TestEncodeEnvelope_NeverExceedsMaxDataLength(t *testing.T) {
	for maxLen := 0; maxLen <= 64; maxLen += 8 {
		for n := 0; n < 80; n++ {
			envelope, err := EncodeEnvelope(make([]byte, n), maxLen, 4)
			if err != nil {
				if !IsCapacityError(err) {
					t.Fatalf("Expected capacity error for n=%d max=%d, got %v", n, maxLen, err)
				}
				continue
			}
			if len(envelope) > maxLen {
				t.Fatalf("Envelope of %d bytes exceeds max %d", len(envelope), maxLen)
			}
		}
	}
}

func TestEncodeEnvelope_CapacityExceeded(t *testing.T) {
	record := EncodeTextRecord("hi", "en")
	_, err := EncodeEnvelope(record, 12, 4)
	if !IsCapacityError(err) {
		t.Errorf("Expected capacity error, got %v", err)
	}

	_, err = EncodeEnvelope(make([]byte, 0x10000), 1<<20, 4)
	if !IsCapacityError(err) {
		t.Errorf("Expected capacity error for oversized record, got %v", err)
	}
}

func TestDecodeTextRecords_RoundTrip(t *testing.T) {
	tests := []string{"hi", "Hello NFC World!", "こんにちは", "", strings.Repeat("x", 400)}

	for _, text := range tests {
		envelope, err := EncodeEnvelope(EncodeTextRecord(text, "en"), 1024, 4)
		if err != nil {
			t.Fatalf("EncodeEnvelope(%q) failed: %v", text, err)
		}
		got, err := DecodeTextRecords(validCC, envelope)
		if err != nil {
			t.Fatalf("DecodeTextRecords failed: %v", err)
		}
		if len(got) != 1 || got[0] != text {
			t.Errorf("Expected [%q], got %q", text, got)
		}
	}
}

func TestDecodeTextRecords_InvalidHeader(t *testing.T) {
	_, err := DecodeTextRecords(CapabilityContainer{Magic: 0x00}, []byte{0x03, 0x00, 0xFE})
	if !IsMalformedTagError(err) {
		t.Errorf("Expected malformed tag error, got %v", err)
	}
}

func TestDecodeTextRecords_SkipsControlTLVs(t *testing.T) {
	record := EncodeTextRecord("hi", "en")
	var raw []byte
	raw = append(raw, TLVNull, TLVNull)
	raw = append(raw, TLVLockCtrl, 0x03, 0xA0, 0x10, 0x44)
	raw = append(raw, TLVMemCtrl, 0x03, 0xC0, 0x02, 0x03)
	raw = append(raw, TLVProprietary, 0x02, 0xAB, 0xCD)
	raw = append(raw, TLVNDEF, byte(len(record)))
	raw = append(raw, record...)
	raw = append(raw, TLVTerminator)

	got, err := DecodeTextRecords(validCC, raw)
	if err != nil {
		t.Fatalf("DecodeTextRecords failed: %v", err)
	}
	if len(got) != 1 || got[0] != "hi" {
		t.Errorf("Expected [hi], got %q", got)
	}
}

func TestDecodeTextRecords_MultipleRecordsInOrder(t *testing.T) {
	message := encodeNDEFRecords([]NDEFRecord{
		{TNF: TNFWellKnown, Type: []byte{'T'}, Payload: MakeTextRecordPayload("first", "en")},
		{TNF: TNFWellKnown, Type: []byte{'U'}, Payload: []byte{0x04, 'a', '.', 'b'}},
		{TNF: TNFWellKnown, Type: []byte{'T'}, Payload: MakeTextRecordPayload("second", "de")},
	})
	second := EncodeTextRecord("third", "en")

	raw := append([]byte{TLVNDEF, byte(len(message))}, message...)
	raw = append(raw, TLVNDEF, byte(len(second)))
	raw = append(raw, second...)
	raw = append(raw, TLVTerminator)

	got, err := DecodeTextRecords(validCC, raw)
	if err != nil {
		t.Fatalf("DecodeTextRecords failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestDecodeTextRecords_EmptyAndGarbage(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"nil", nil},
		{"zeros", make([]byte, 48)},
		{"terminator only", []byte{TLVTerminator}},
		{"empty ndef", []byte{TLVNDEF, 0x00, TLVTerminator}},
		{"cut length", []byte{TLVNDEF}},
		{"cut long length", []byte{TLVNDEF, 0xFF, 0x01}},
		{"non text record", append([]byte{TLVNDEF, 0x06}, 0xD1, 0x01, 0x02, 'U', 0x04, 'x')},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTextRecords(validCC, tt.raw)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("Expected empty non-nil slice, got %#v", got)
			}
		})
	}
}

func TestDecodeTextRecords_TruncatedValueIsClamped(t *testing.T) {
	first := encodeNDEFRecords([]NDEFRecord{
		{TNF: TNFWellKnown, Type: []byte{'T'}, Payload: MakeTextRecordPayload("kept", "en")},
		{TNF: TNFWellKnown, Type: []byte{'T'}, Payload: MakeTextRecordPayload("dropped", "en")},
	})
	// Declared length covers both records; the data ends inside the second.
	raw := append([]byte{TLVNDEF, byte(len(first))}, first[:len(first)-3]...)

	got, err := DecodeTextRecords(validCC, raw)
	if err != nil {
		t.Fatalf("DecodeTextRecords failed: %v", err)
	}
	if len(got) != 1 || got[0] != "kept" {
		t.Errorf("Expected [kept], got %q", got)
	}
}

func TestScanNDEFMessages_LongLength(t *testing.T) {
	value := bytes.Repeat([]byte{0x01}, 300)
	raw := append([]byte{TLVNDEF, 0xFF, 0x01, 0x2C}, value...)
	raw = append(raw, TLVTerminator)

	messages := scanNDEFMessages(raw)
	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	if !bytes.Equal(messages[0], value) {
		t.Error("Long-form value not extracted")
	}
}
