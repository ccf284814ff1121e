package nfc

import (
	"errors"
	"testing"
)

func TestParseCapabilityContainer(t *testing.T) {
	tests := []struct {
		name       string
		header     []byte
		valid      bool
		locked     bool
		major      byte
		minor      byte
		maxLength  int
		readAccess byte
		access     string
	}{
		{"ntag213", []byte{0xE1, 0x10, 0x12, 0x00}, true, false, 1, 0, 144, 0, AccessLevelReadWrite},
		{"ntag215", []byte{0xE1, 0x10, 0x3E, 0x00}, true, false, 1, 0, 496, 0, AccessLevelReadWrite},
		{"locked", []byte{0xE1, 0x11, 0x06, 0x0F}, true, true, 1, 1, 48, 0, AccessLevelReadOnly},
		{"read nibble kept", []byte{0xE1, 0x21, 0x06, 0xAF}, true, true, 2, 1, 48, 0x0A, AccessLevelReadOnly},
		{"partial write nibble", []byte{0xE1, 0x10, 0x06, 0x0E}, true, false, 1, 0, 48, 0, AccessLevelReadWrite},
		{"wrong magic", []byte{0x00, 0x10, 0x06, 0x00}, false, false, 1, 0, 48, 0, AccessLevelReadWrite},
		{"extra bytes ignored", []byte{0xE1, 0x10, 0x06, 0x00, 0xFF, 0xFF}, true, false, 1, 0, 48, 0, AccessLevelReadWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc, err := ParseCapabilityContainer(tt.header)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if cc.IsValid() != tt.valid {
				t.Errorf("IsValid: expected %v, got %v", tt.valid, cc.IsValid())
			}
			if cc.IsLocked() != tt.locked {
				t.Errorf("IsLocked: expected %v, got %v", tt.locked, cc.IsLocked())
			}
			if cc.MajorVersion != tt.major || cc.MinorVersion != tt.minor {
				t.Errorf("Version: expected %d.%d, got %s", tt.major, tt.minor, cc.Version())
			}
			if cc.MaxDataLength != tt.maxLength {
				t.Errorf("MaxDataLength: expected %d, got %d", tt.maxLength, cc.MaxDataLength)
			}
			if cc.ReadAccess != tt.readAccess {
				t.Errorf("ReadAccess: expected %X, got %X", tt.readAccess, cc.ReadAccess)
			}
			if cc.AccessLevel() != tt.access {
				t.Errorf("AccessLevel: expected %q, got %q", tt.access, cc.AccessLevel())
			}
		})
	}
}

func TestParseCapabilityContainer_Short(t *testing.T) {
	for _, header := range [][]byte{nil, {0xE1}, {0xE1, 0x10, 0x06}} {
		_, err := ParseCapabilityContainer(header)
		if !IsMalformedTagError(err) {
			t.Errorf("Expected malformed tag error for %X, got %v", header, err)
		}
	}
}

func TestParseCapabilityContainer_Raw(t *testing.T) {
	header := []byte{0xE1, 0x10, 0x06, 0x00}
	cc, _ := ParseCapabilityContainer(header)
	header[0] = 0x00
	if cc.Raw != [4]byte{0xE1, 0x10, 0x06, 0x00} {
		t.Errorf("Raw should be a copy, got %X", cc.Raw)
	}
}

func TestReadCapabilityContainer(t *testing.T) {
	tag := NewFormattedMockTag("04A1B2C3", 48)

	cc, err := ReadCapabilityContainer(tag)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !cc.IsValid() || cc.MaxDataLength != 48 {
		t.Errorf("Unexpected container %+v", cc)
	}

	log := tag.GetCallLog()
	if len(log) != 1 || log[0] != "ReadPages(3,4)" {
		t.Errorf("Expected a single read of page 3, got %v", log)
	}
}

func TestReadCapabilityContainer_ReadFailure(t *testing.T) {
	tag := NewFormattedMockTag("04A1B2C3", 48)
	cause := errors.New("transmit failed")
	tag.ReadErrors[CapabilityContainerPage] = cause

	_, err := ReadCapabilityContainer(tag)
	if !IsCommunicationError(err) {
		t.Fatalf("Expected communication error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be wrapped")
	}
}

func TestReadCapabilityContainer_ShortRead(t *testing.T) {
	tag := NewFormattedMockTag("04A1B2C3", 48)
	tag.ReadPagesFunc = func(page byte, n int) ([]byte, error) {
		return []byte{0xE1}, nil
	}

	_, err := ReadCapabilityContainer(tag)
	if !IsCommunicationError(err) {
		t.Errorf("Expected communication error, got %v", err)
	}
}
