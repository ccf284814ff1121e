package nfc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/clausecker/freefare"
)

// ultralightPageReader is the part of freefare.UltralightTag the transport needs.
type ultralightPageReader interface {
	UID() string
	Connect() error
	Disconnect() error
	ReadPage(page byte) ([4]byte, error)
	WritePage(page byte, data [4]byte) error
}

// freefareUltralight forwards to a freefare.UltralightTag.
type freefareUltralight struct {
	tag freefare.UltralightTag
}

func (f *freefareUltralight) UID() string       { return f.tag.UID() }
func (f *freefareUltralight) Connect() error    { return f.tag.Connect() }
func (f *freefareUltralight) Disconnect() error { return f.tag.Disconnect() }

func (f *freefareUltralight) ReadPage(page byte) ([4]byte, error) {
	return f.tag.ReadPage(page)
}

func (f *freefareUltralight) WritePage(page byte, data [4]byte) error {
	return f.tag.WritePage(page, data)
}

// ultralightTag implements TagTransport for Type 2 tags found through
// libfreefare (MIFARE Ultralight, Ultralight C and NTAG2xx).
// The device lock is shared with the reader's poll loop.
type ultralightTag struct {
	tag    ultralightPageReader
	device sync.Locker
}

func newUltralightTag(tag ultralightPageReader, device sync.Locker) *ultralightTag {
	if device == nil {
		device = &sync.Mutex{}
	}
	return &ultralightTag{tag: tag, device: device}
}

func (u *ultralightTag) UID() string {
	return strings.ToUpper(u.tag.UID())
}

// ReadPages reads whole pages until n bytes are collected.
func (u *ultralightTag) ReadPages(page byte, n int) ([]byte, error) {
	u.device.Lock()
	defer u.device.Unlock()

	if err := u.tag.Connect(); err != nil {
		return nil, fmt.Errorf("ultralightTag.ReadPages connect error: %w", err)
	}
	defer u.tag.Disconnect()

	out := make([]byte, 0, n+BlockSize)
	for p := int(page); len(out) < n; p++ {
		if p > 0xFF {
			return nil, fmt.Errorf("ultralightTag.ReadPages: read past page 0xFF")
		}
		data, err := u.tag.ReadPage(byte(p))
		if err != nil {
			return nil, fmt.Errorf("ultralightTag.ReadPages page %d: %w", p, err)
		}
		out = append(out, data[:]...)
	}
	return out[:n], nil
}

// WritePages writes data one page at a time; a short final page is zero padded.
func (u *ultralightTag) WritePages(page byte, data []byte) error {
	u.device.Lock()
	defer u.device.Unlock()

	if err := u.tag.Connect(); err != nil {
		return fmt.Errorf("ultralightTag.WritePages connect error: %w", err)
	}
	defer u.tag.Disconnect()

	for off := 0; off < len(data); off += BlockSize {
		var buf [4]byte
		copy(buf[:], data[off:])
		p := int(page) + off/BlockSize
		if p > 0xFF {
			return fmt.Errorf("ultralightTag.WritePages: write past page 0xFF")
		}
		if err := u.tag.WritePage(byte(p), buf); err != nil {
			return fmt.Errorf("ultralightTag.WritePages page %d: %w", p, err)
		}
	}
	return nil
}
