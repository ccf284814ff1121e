package nfc

// ReadResult is the success payload of the read phase.
type ReadResult struct {
	AccessLevel string   `json:"access-level"`
	Records     []string `json:"records"`
}

// ReadTag reads the capability container and decodes every text record in
// the data area.
func ReadTag(t PageTransport) (ReadResult, error) {
	cc, err := ReadCapabilityContainer(t)
	if err != nil {
		return ReadResult{}, err
	}
	if !cc.IsValid() {
		return ReadResult{}, NewMalformedTagError("ReadTag", "malformed tag header")
	}

	var raw []byte
	if cc.MaxDataLength > 0 {
		raw, err = t.ReadPages(DataStartPage, cc.MaxDataLength)
		if err != nil {
			return ReadResult{}, NewCommunicationError("ReadTag", "error reading tag", err)
		}
		if len(raw) > cc.MaxDataLength {
			raw = raw[:cc.MaxDataLength]
		}
	}

	records, err := DecodeTextRecords(cc, raw)
	if err != nil {
		return ReadResult{}, err
	}
	return ReadResult{AccessLevel: cc.AccessLevel(), Records: records}, nil
}

// WriteTag replaces the tag's data area with a single text record holding message.
func WriteTag(t PageTransport, message string) error {
	cc, err := ReadCapabilityContainer(t)
	if err != nil {
		return err
	}
	if cc.IsLocked() {
		return NewPermissionError("WriteTag", uidOf(t))
	}
	if !cc.IsValid() {
		return NewMalformedTagError("WriteTag", "malformed tag header")
	}
	if message == "" {
		return NewConfigurationError("WriteTag", "no message set")
	}

	envelope, err := EncodeEnvelope(EncodeTextRecord(message, DefaultLanguage), cc.MaxDataLength, BlockSize)
	if err != nil {
		return err
	}

	if err := t.WritePages(DataStartPage, envelope); err != nil {
		return NewCommunicationError("WriteTag", "error writing to tag", err)
	}
	return nil
}

// LockTag makes the tag permanently read-only.
func LockTag(t PageTransport) error {
	return MakeReadOnly(t)
}

func uidOf(t PageTransport) string {
	if tt, ok := t.(TagTransport); ok {
		return tt.UID()
	}
	return ""
}
