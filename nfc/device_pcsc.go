package nfc

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ebfe/scard"
)

// pcscTag implements TagTransport over a connected PC/SC card using the
// reader's read/update binary pseudo-APDUs.
type pcscTag struct {
	card *scard.Card
	uid  string
	mu   sync.Mutex
}

// newPCSCTag wraps a connected card and fetches its UID.
func newPCSCTag(card *scard.Card) (*pcscTag, error) {
	// Validate protocol before any operations - the scard library panics on invalid protocol
	proto := card.ActiveProtocol()
	if proto != scard.ProtocolT0 && proto != scard.ProtocolT1 {
		return nil, fmt.Errorf("card protocol %d: %w", proto, NewNotSupportedError("newPCSCTag"))
	}

	t := &pcscTag{card: card}
	uid, err := t.transmit(GetUIDAPDU())
	if err != nil {
		return nil, fmt.Errorf("GET UID failed: %w", err)
	}
	t.uid = BytesToHex(uid)
	return t, nil
}

func (t *pcscTag) UID() string {
	return t.uid
}

// ReadPages reads n bytes starting at page in chunks of up to four pages.
func (t *pcscTag) ReadPages(page byte, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := n - len(out)
		if chunk > maxReadBinary {
			chunk = maxReadBinary
		}
		// Readers only address whole pages.
		if rem := chunk % BlockSize; rem != 0 {
			chunk += BlockSize - rem
		}
		current := int(page) + len(out)/BlockSize
		if current > 0xFF {
			return nil, fmt.Errorf("read past page 0xFF")
		}
		data, err := t.transmit(ReadBinaryAPDU(byte(current), byte(chunk)))
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", current, err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("read page %d: empty response", current)
		}
		out = append(out, data...)
	}
	return out[:n], nil
}

// WritePages writes data one page at a time.
func (t *pcscTag) WritePages(page byte, data []byte) error {
	for off := 0; off < len(data); off += BlockSize {
		end := off + BlockSize
		if end > len(data) {
			end = len(data)
		}
		buf := make([]byte, BlockSize)
		copy(buf, data[off:end])

		current := int(page) + off/BlockSize
		if current > 0xFF {
			return fmt.Errorf("write past page 0xFF")
		}
		if _, err := t.transmit(UpdateBinaryAPDU(byte(current), buf)); err != nil {
			return fmt.Errorf("write page %d: %w", current, err)
		}
	}
	return nil
}

// transmit sends one APDU and returns the response data on 90 00.
func (t *pcscTag) transmit(cmd []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.card == nil {
		return nil, NewTagRemovedError("pcscTag.transmit", errors.New("card disconnected"))
	}

	rx, err := t.card.Transmit(cmd)
	if err != nil {
		if isCardRemovedPCSCError(err) {
			return nil, NewTagRemovedError("pcscTag.transmit", err)
		}
		return nil, fmt.Errorf("pcscTag.transmit: %w", err)
	}

	resp, err := ParseAPDUResponse(rx)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, resp.Error()
	}
	return resp.Data, nil
}

// close disconnects the card. Later transport calls fail with a tag removed error.
func (t *pcscTag) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.card == nil {
		return nil
	}
	err := t.card.Disconnect(scard.LeaveCard)
	t.card = nil
	return err
}

// isCardRemovedPCSCError checks if a PC/SC error indicates the card was removed.
// Uses typed error checking first (most reliable), with string matching fallback.
func isCardRemovedPCSCError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, scard.ErrRemovedCard) ||
		errors.Is(err, scard.ErrResetCard) ||
		errors.Is(err, scard.ErrNoSmartcard) ||
		errors.Is(err, scard.ErrUnpoweredCard) {
		return true
	}

	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "removed") ||
		strings.Contains(errLower, "reset") ||
		strings.Contains(errLower, "unpowered") ||
		strings.Contains(errLower, "no smart card") ||
		strings.Contains(errLower, "not transacted")
}

// filterContactlessReaders drops SAM slots from the reader list.
func filterContactlessReaders(readers []string) []string {
	var filtered []string
	for _, r := range readers {
		if strings.Contains(strings.ToUpper(r), "SAM") {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
