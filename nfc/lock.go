package nfc

import "fmt"

// Static lock bytes 2 and 3 of the lock page cover pages 0x03-0x0F.
const (
	lockByteOffset = 2
	ccAccessOffset = 3
)

// BuildLockWrite computes the 8-byte write that makes a tag permanently
// read-only: both static lock bytes set, and the CC write access nibble set
// to 0xF with the read nibble preserved. Inputs are not modified.
func BuildLockWrite(lockPage, ccPage []byte) (byte, []byte, error) {
	if len(lockPage) < BlockSize || len(ccPage) < BlockSize {
		return 0, nil, NewMalformedTagError("BuildLockWrite",
			fmt.Sprintf("lock and capability pages need %d bytes, got %d and %d", BlockSize, len(lockPage), len(ccPage)))
	}

	buf := make([]byte, 2*BlockSize)
	copy(buf[:BlockSize], lockPage[:BlockSize])
	copy(buf[BlockSize:], ccPage[:BlockSize])

	buf[lockByteOffset] = 0xFF
	buf[lockByteOffset+1] = 0xFF
	buf[BlockSize+ccAccessOffset] |= CCAccessNone

	return LockPage, buf, nil
}

// MakeReadOnly locks the tag. There is no way back.
func MakeReadOnly(t PageTransport) error {
	lockPage, err := t.ReadPages(LockPage, BlockSize)
	if err != nil {
		return NewCommunicationError("MakeReadOnly", "error reading tag", err)
	}
	ccPage, err := t.ReadPages(CapabilityContainerPage, BlockSize)
	if err != nil {
		return NewCommunicationError("MakeReadOnly", "error reading tag", err)
	}

	page, data, err := BuildLockWrite(lockPage, ccPage)
	if err != nil {
		return NewCommunicationError("MakeReadOnly", "error reading tag", err)
	}

	if err := t.WritePages(page, data); err != nil {
		return NewCommunicationError("MakeReadOnly", "error writing readonly information to tag", err)
	}
	return nil
}
