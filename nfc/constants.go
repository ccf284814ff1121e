package nfc

// Type 2 tag memory layout. Every page is 4 bytes.
const (
	// LockPage holds the static lock bytes (bytes 2-3 lock pages 3-15).
	LockPage byte = 0x02
	// CapabilityContainerPage holds the 4-byte capability container.
	CapabilityContainerPage byte = 0x03
	// DataStartPage is the first page of the NDEF data area.
	DataStartPage byte = 0x04
	// BlockSize is the number of bytes per page.
	BlockSize = 4
)

// Capability container constants
const (
	// CCMagic is the NDEF magic number expected in CC byte 0.
	CCMagic byte = 0xE1
	// CCAccessNone is the access nibble value meaning no privilege remains.
	CCAccessNone byte = 0x0F
	// CCSizeMultiplier converts CC byte 2 into a data area size in bytes.
	CCSizeMultiplier = 8
)

// Access levels reported by the read phase
const (
	AccessLevelReadOnly  = "Read-only"
	AccessLevelReadWrite = "Read-Write"
)

// DefaultLanguage is the language code written into new text records.
const DefaultLanguage = "en"

// Driver type constants for selecting the reader backend
const (
	DriverTypePCSC   = "pcsc"
	DriverTypeLibNFC = "libnfc"
)

// GetAllDriverTypes returns all supported driver type constants
func GetAllDriverTypes() []string {
	return []string{
		DriverTypePCSC,
		DriverTypeLibNFC,
	}
}
