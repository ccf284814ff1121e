package nfc

import (
	"errors"
	"strings"
	"testing"
)

type fakeUltralight struct {
	uid         string
	pages       map[byte][4]byte
	readErr     error
	connects    int
	disconnects int
}

func (f *fakeUltralight) UID() string { return f.uid }

func (f *fakeUltralight) Connect() error {
	f.connects++
	return nil
}

func (f *fakeUltralight) Disconnect() error {
	f.disconnects++
	return nil
}

func (f *fakeUltralight) ReadPage(page byte) ([4]byte, error) {
	if f.readErr != nil {
		return [4]byte{}, f.readErr
	}
	return f.pages[page], nil
}

func (f *fakeUltralight) WritePage(page byte, data [4]byte) error {
	f.pages[page] = data
	return nil
}

func TestUltralightTag_ReadPages(t *testing.T) {
	fake := &fakeUltralight{uid: "04a1b2c3", pages: map[byte][4]byte{
		3: {0xE1, 0x10, 0x06, 0x00},
		4: {0x03, 0x00, 0xFE, 0x00},
	}}
	tag := newUltralightTag(fake, nil)

	if tag.UID() != "04A1B2C3" {
		t.Errorf("expected uppercase UID, got %q", tag.UID())
	}

	data, err := tag.ReadPages(3, 6)
	if err != nil {
		t.Fatalf("ReadPages failed: %v", err)
	}
	if BytesToHex(data) != "E11006000300" {
		t.Errorf("unexpected data %X", data)
	}
	if fake.connects != 1 || fake.disconnects != 1 {
		t.Errorf("expected one connect/disconnect, got %d/%d", fake.connects, fake.disconnects)
	}
}

func TestUltralightTag_WritePagesPadsFinalPage(t *testing.T) {
	fake := &fakeUltralight{pages: map[byte][4]byte{}}
	tag := newUltralightTag(fake, nil)

	if err := tag.WritePages(4, []byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("WritePages failed: %v", err)
	}
	if fake.pages[4] != [4]byte{1, 2, 3, 4} || fake.pages[5] != [4]byte{5, 6, 0, 0} {
		t.Errorf("unexpected pages %v", fake.pages)
	}
}

func TestUltralightTag_ReadError(t *testing.T) {
	cause := errors.New("rf lost")
	tag := newUltralightTag(&fakeUltralight{readErr: cause, pages: map[byte][4]byte{}}, nil)

	_, err := tag.ReadPages(4, 4)
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestUltralightTag_PastLastPage(t *testing.T) {
	tag := newUltralightTag(&fakeUltralight{pages: map[byte][4]byte{}}, nil)

	if _, err := tag.ReadPages(0xFF, 8); err == nil || !strings.Contains(err.Error(), "past page") {
		t.Errorf("expected past-page error, got %v", err)
	}
}

func TestUltralightTag_DrivesPhases(t *testing.T) {
	fake := &fakeUltralight{uid: "04a1", pages: map[byte][4]byte{
		3: {0xE1, 0x10, 0x06, 0x00},
		4: {0x03, 0x00, 0xFE, 0x00},
	}}
	tag := newUltralightTag(fake, nil)

	if err := WriteTag(tag, "hi"); err != nil {
		t.Fatalf("WriteTag failed: %v", err)
	}
	res, err := ReadTag(tag)
	if err != nil {
		t.Fatalf("ReadTag failed: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0] != "hi" {
		t.Errorf("expected [hi], got %q", res.Records)
	}
}
