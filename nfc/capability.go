package nfc

import "fmt"

// CapabilityContainer is the decoded 4-byte header at page 0x03 of a Type 2 tag.
type CapabilityContainer struct {
	Magic         byte
	MajorVersion  byte
	MinorVersion  byte
	MaxDataLength int // advisory; from CC byte 2 * 8
	ReadAccess    byte
	WriteAccess   byte
	Raw           [4]byte
}

// IsValid reports whether the container carries the NDEF magic number.
func (cc CapabilityContainer) IsValid() bool {
	return cc.Magic == CCMagic
}

// IsLocked reports whether the write access nibble forbids writes.
func (cc CapabilityContainer) IsLocked() bool {
	return cc.WriteAccess == CCAccessNone
}

// AccessLevel returns the human readable access level reported in read results.
func (cc CapabilityContainer) AccessLevel() string {
	if cc.IsLocked() {
		return AccessLevelReadOnly
	}
	return AccessLevelReadWrite
}

// Version returns the mapping version as "major.minor".
func (cc CapabilityContainer) Version() string {
	return fmt.Sprintf("%d.%d", cc.MajorVersion, cc.MinorVersion)
}

// ParseCapabilityContainer decodes the first four bytes of header.
// A wrong magic number is not an error; check IsValid.
func ParseCapabilityContainer(header []byte) (CapabilityContainer, error) {
	if len(header) < BlockSize {
		return CapabilityContainer{}, NewMalformedTagError("ParseCapabilityContainer",
			fmt.Sprintf("capability container needs %d bytes, got %d", BlockSize, len(header)))
	}

	var cc CapabilityContainer
	copy(cc.Raw[:], header[:BlockSize])
	cc.Magic = header[0]
	cc.MajorVersion = header[1] >> 4
	cc.MinorVersion = header[1] & 0x0F
	cc.MaxDataLength = int(header[2]) * CCSizeMultiplier
	cc.ReadAccess = header[3] >> 4
	cc.WriteAccess = header[3] & 0x0F
	return cc, nil
}

// ReadCapabilityContainer reads page 0x03 from the tag and parses it.
func ReadCapabilityContainer(t PageTransport) (CapabilityContainer, error) {
	header, err := t.ReadPages(CapabilityContainerPage, BlockSize)
	if err != nil {
		return CapabilityContainer{}, NewCommunicationError("ReadCapabilityContainer", "cannot read tag header", err)
	}
	cc, err := ParseCapabilityContainer(header)
	if err != nil {
		return CapabilityContainer{}, NewCommunicationError("ReadCapabilityContainer", "cannot read tag header", err)
	}
	return cc, nil
}
