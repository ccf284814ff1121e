package nfc

import (
	"bytes"
	"errors"
	"testing"
)

func TestBuildLockWrite(t *testing.T) {
	tests := []struct {
		name     string
		lockPage []byte
		ccPage   []byte
		want     []byte
	}{
		{
			name:     "blank tag",
			lockPage: []byte{0x48, 0x00, 0x00, 0x00},
			ccPage:   []byte{0xE1, 0x10, 0x12, 0x00},
			want:     []byte{0x48, 0x00, 0xFF, 0xFF, 0xE1, 0x10, 0x12, 0x0F},
		},
		{
			name:     "read nibble preserved",
			lockPage: []byte{0x11, 0x22, 0x01, 0x80},
			ccPage:   []byte{0xE1, 0x10, 0x06, 0xA3},
			want:     []byte{0x11, 0x22, 0xFF, 0xFF, 0xE1, 0x10, 0x06, 0xAF},
		},
		{
			name:     "already locked",
			lockPage: []byte{0x00, 0x00, 0xFF, 0xFF},
			ccPage:   []byte{0xE1, 0x10, 0x06, 0x0F},
			want:     []byte{0x00, 0x00, 0xFF, 0xFF, 0xE1, 0x10, 0x06, 0x0F},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lockCopy := append([]byte(nil), tt.lockPage...)
			ccCopy := append([]byte(nil), tt.ccPage...)

			page, data, err := BuildLockWrite(tt.lockPage, tt.ccPage)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if page != LockPage {
				t.Errorf("Expected page %d, got %d", LockPage, page)
			}
			if !bytes.Equal(data, tt.want) {
				t.Errorf("Expected %X, got %X", tt.want, data)
			}
			if !bytes.Equal(tt.lockPage, lockCopy) || !bytes.Equal(tt.ccPage, ccCopy) {
				t.Error("Inputs were modified")
			}
		})
	}
}

func TestBuildLockWrite_ShortInput(t *testing.T) {
	_, _, err := BuildLockWrite([]byte{0x00, 0x00}, []byte{0xE1, 0x10, 0x06, 0x00})
	if !IsMalformedTagError(err) {
		t.Errorf("Expected malformed tag error, got %v", err)
	}
	_, _, err = BuildLockWrite([]byte{0x00, 0x00, 0x00, 0x00}, nil)
	if !IsMalformedTagError(err) {
		t.Errorf("Expected malformed tag error, got %v", err)
	}
}

func TestMakeReadOnly(t *testing.T) {
	tag := NewFormattedMockTag("04A1B2C3", 48)
	tag.SetPage(LockPage, [4]byte{0x48, 0x00, 0x00, 0x00})

	if err := MakeReadOnly(tag); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if tag.WriteCount() != 1 {
		t.Fatalf("Expected exactly one write, got %d", tag.WriteCount())
	}
	w := tag.Writes[0]
	if w.Page != LockPage || len(w.Data) != 8 {
		t.Errorf("Expected 8 bytes at page 2, got %d bytes at page %d", len(w.Data), w.Page)
	}

	cc, err := ReadCapabilityContainer(tag)
	if err != nil {
		t.Fatalf("ReadCapabilityContainer failed: %v", err)
	}
	if !cc.IsLocked() {
		t.Error("Expected tag to be locked")
	}
	if lock := tag.Page(LockPage); lock[2] != 0xFF || lock[3] != 0xFF {
		t.Errorf("Expected lock bytes set, got %X", lock)
	}
}

func TestMakeReadOnly_Errors(t *testing.T) {
	cause := errors.New("io")

	tests := []struct {
		name    string
		setup   func(*MockTag)
		message string
	}{
		{"lock page read", func(m *MockTag) { m.ReadErrors[LockPage] = cause }, "error reading tag"},
		{"cc page read", func(m *MockTag) { m.ReadErrors[CapabilityContainerPage] = cause }, "error reading tag"},
		{"write", func(m *MockTag) { m.WriteError = cause }, "error writing readonly information to tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag := NewFormattedMockTag("04A1B2C3", 48)
			tt.setup(tag)

			err := MakeReadOnly(tag)
			if !IsCommunicationError(err) {
				t.Fatalf("Expected communication error, got %v", err)
			}
			var nfcErr *NFCError
			if !errors.As(err, &nfcErr) || nfcErr.Message != tt.message {
				t.Errorf("Expected message %q, got %v", tt.message, err)
			}
		})
	}
}

func TestMakeReadOnly_NoWriteOnReadFailure(t *testing.T) {
	tag := NewFormattedMockTag("04A1B2C3", 48)
	tag.ReadErrors[CapabilityContainerPage] = errors.New("io")

	_ = MakeReadOnly(tag)
	if tag.WriteCount() != 0 {
		t.Errorf("Expected no writes, got %d", tag.WriteCount())
	}
}
