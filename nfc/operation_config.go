package nfc

import "sync"

// Snapshot is an immutable copy of the operation configuration taken once
// per tag event.
type Snapshot struct {
	Read     bool    `json:"read"`
	Write    bool    `json:"write"`
	ReadOnly bool    `json:"readOnly"`
	Message  *string `json:"message"`
}

// MessageText returns the configured message, or "" when unset.
func (s Snapshot) MessageText() string {
	if s.Message == nil {
		return ""
	}
	return *s.Message
}

// OperationConfiguration holds the permissions and message that control what
// happens to the next presented tag. It is safe for concurrent use.
type OperationConfiguration struct {
	mu       sync.RWMutex
	read     bool
	write    bool
	readOnly bool
	message  *string

	// onChange, when set, is called with the new snapshot after each mutation.
	onChange func(Snapshot)
}

// NewOperationConfiguration returns a configuration with everything disabled.
func NewOperationConfiguration() *OperationConfiguration {
	return &OperationConfiguration{}
}

// OnChange registers fn to receive every new snapshot after a mutation.
func (c *OperationConfiguration) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// SetRead enables or disables the read phase and returns the new value.
func (c *OperationConfiguration) SetRead(v bool) bool {
	c.update(func() { c.read = v })
	return v
}

// SetWrite enables or disables the write phase and returns the new value.
func (c *OperationConfiguration) SetWrite(v bool) bool {
	c.update(func() { c.write = v })
	return v
}

// SetReadOnly enables or disables the lock phase and returns the new value.
func (c *OperationConfiguration) SetReadOnly(v bool) bool {
	c.update(func() { c.readOnly = v })
	return v
}

// SetPermissions sets all three phase flags at once.
func (c *OperationConfiguration) SetPermissions(read, write, readOnly bool) {
	c.update(func() {
		c.read = read
		c.write = write
		c.readOnly = readOnly
	})
}

// SetMessage sets the message to write. A nil message clears it.
func (c *OperationConfiguration) SetMessage(msg *string) {
	var cp *string
	if msg != nil {
		s := *msg
		cp = &s
	}
	c.update(func() { c.message = cp })
}

// Apply replaces the whole configuration with s.
func (c *OperationConfiguration) Apply(s Snapshot) {
	var cp *string
	if s.Message != nil {
		m := *s.Message
		cp = &m
	}
	c.update(func() {
		c.read = s.Read
		c.write = s.Write
		c.readOnly = s.ReadOnly
		c.message = cp
	})
}

// Reset disables every phase and clears the message.
func (c *OperationConfiguration) Reset() {
	c.update(func() {
		c.read = false
		c.write = false
		c.readOnly = false
		c.message = nil
	})
}

// Snapshot captures all four values atomically.
func (c *OperationConfiguration) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *OperationConfiguration) snapshotLocked() Snapshot {
	s := Snapshot{Read: c.read, Write: c.write, ReadOnly: c.readOnly}
	if c.message != nil {
		m := *c.message
		s.Message = &m
	}
	return s
}

func (c *OperationConfiguration) update(fn func()) {
	c.mu.Lock()
	fn()
	snap := c.snapshotLocked()
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(snap)
	}
}
