package nfc

import (
	"fmt"
	"sync"
)

// MockTag is an in-memory Type 2 tag implementing TagTransport.
//
// Memory holds the whole tag image starting at page 0. Reads past the end
// return zeros; writes past the end grow the image.
//
// Example:
//
//	tag := NewMockTag("04A1B2C3", 48)
//	tag.SetPage(CapabilityContainerPage, [4]byte{0xE1, 0x10, 0x06, 0x00})
//	res, _ := ReadTag(tag)
type MockTag struct {
	// TagUID is the UID returned by UID()
	TagUID string

	// Memory is the raw tag image, page 0 first
	Memory []byte

	// ReadErrors maps a start page to the error ReadPages returns for it
	ReadErrors map[byte]error

	// WriteError, if set, will be returned by WritePages()
	WriteError error

	// ReadPagesFunc allows custom read behavior
	// If nil, serves from Memory
	ReadPagesFunc func(page byte, n int) ([]byte, error)

	// WritePagesFunc allows custom write behavior
	// If nil, writes into Memory
	WritePagesFunc func(page byte, data []byte) error

	// Writes records every WritePages call in order
	Writes []MockWrite

	// CallLog tracks all method calls for verification in tests
	CallLog []string

	mu sync.Mutex
}

// MockWrite is one recorded WritePages call.
type MockWrite struct {
	Page byte
	Data []byte
}

// NewMockTag creates a blank tag with the given number of pages.
func NewMockTag(uid string, pages int) *MockTag {
	return &MockTag{
		TagUID:     uid,
		Memory:     make([]byte, pages*BlockSize),
		ReadErrors: make(map[byte]error),
		CallLog:    make([]string, 0),
	}
}

// NewFormattedMockTag creates a tag with a valid capability container
// declaring dataLength bytes of data area and an empty NDEF TLV.
func NewFormattedMockTag(uid string, dataLength int) *MockTag {
	pages := int(DataStartPage) + dataLength/BlockSize
	t := NewMockTag(uid, pages)
	t.SetPage(CapabilityContainerPage, [4]byte{CCMagic, 0x10, byte(dataLength / CCSizeMultiplier), 0x00})
	t.SetPage(DataStartPage, [4]byte{TLVNDEF, 0x00, TLVTerminator, 0x00})
	return t
}

// SetPage overwrites one page of Memory.
func (m *MockTag) SetPage(page byte, data [4]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(int(page)*BlockSize + BlockSize)
	copy(m.Memory[int(page)*BlockSize:], data[:])
}

// Page returns a copy of one page of Memory.
func (m *MockTag) Page(page byte) [4]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [4]byte
	off := int(page) * BlockSize
	if off < len(m.Memory) {
		copy(out[:], m.Memory[off:])
	}
	return out
}

// Bytes returns a copy of n bytes of Memory starting at page.
func (m *MockTag) Bytes(page byte, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slice(page, n)
}

// UID returns the tag's UID.
func (m *MockTag) UID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "UID")
	return m.TagUID
}

// ReadPages returns n bytes starting at page.
func (m *MockTag) ReadPages(page byte, n int) ([]byte, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("ReadPages(%d,%d)", page, n))
	fn := m.ReadPagesFunc
	if fn == nil {
		defer m.mu.Unlock()
		if err := m.ReadErrors[page]; err != nil {
			return nil, err
		}
		return m.slice(page, n), nil
	}
	m.mu.Unlock()
	return fn(page, n)
}

// WritePages writes data starting at page.
func (m *MockTag) WritePages(page byte, data []byte) error {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("WritePages(%d,%d)", page, len(data)))
	m.Writes = append(m.Writes, MockWrite{Page: page, Data: append([]byte(nil), data...)})
	fn := m.WritePagesFunc
	if fn == nil {
		defer m.mu.Unlock()
		if m.WriteError != nil {
			return m.WriteError
		}
		off := int(page) * BlockSize
		m.ensure(off + len(data))
		copy(m.Memory[off:], data)
		return nil
	}
	m.mu.Unlock()
	return fn(page, data)
}

// WriteCount returns the number of WritePages calls so far.
func (m *MockTag) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Writes)
}

// GetCallLog returns a copy of the call log.
func (m *MockTag) GetCallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := make([]string, len(m.CallLog))
	copy(log, m.CallLog)
	return log
}

// ResetCallLog clears the call log.
func (m *MockTag) ResetCallLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = make([]string, 0)
}

func (m *MockTag) slice(page byte, n int) []byte {
	out := make([]byte, n)
	off := int(page) * BlockSize
	if off < len(m.Memory) {
		copy(out, m.Memory[off:])
	}
	return out
}

func (m *MockTag) ensure(size int) {
	if size > len(m.Memory) {
		grown := make([]byte, size)
		copy(grown, m.Memory)
		m.Memory = grown
	}
}
