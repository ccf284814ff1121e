package nfc

import (
	"sync"
)

// MockReader is a test implementation of Reader fed by the test.
//
// Example:
//
//	r := NewMockReader("ACR122U")
//	r.Present(NewFormattedMockTag("04A1B2C3", 48))
//	r.Remove()
type MockReader struct {
	ReaderName string

	events  chan ReaderEvent
	removed chan struct{}
	once    sync.Once
}

// NewMockReader creates a reader with a buffered event stream.
func NewMockReader(name string) *MockReader {
	return &MockReader{
		ReaderName: name,
		events:     make(chan ReaderEvent, 16),
		removed:    make(chan struct{}),
	}
}

func (r *MockReader) Name() string {
	return r.ReaderName
}

func (r *MockReader) Events() <-chan ReaderEvent {
	return r.events
}

// Removed is closed by Remove.
func (r *MockReader) Removed() <-chan struct{} {
	return r.removed
}

// Present emits a TagDetected event for t.
func (r *MockReader) Present(t TagTransport) {
	r.events <- ReaderEvent{Type: TagDetected, Tag: t}
}

// Fail emits a ReaderErrorEvent.
func (r *MockReader) Fail(err error) {
	r.events <- ReaderEvent{Type: ReaderErrorEvent, Err: err}
}

// Remove emits ReaderRemoved and closes the stream.
func (r *MockReader) Remove() {
	r.once.Do(func() {
		close(r.removed)
		r.events <- ReaderEvent{Type: ReaderRemoved}
		close(r.events)
	})
}

// MockDriver is a test implementation of Driver.
type MockDriver struct {
	readers chan Reader
	errs    chan error

	// CloseError, if set, will be returned by Close()
	CloseError error

	// Closed tracks whether Close was called
	Closed bool

	mu   sync.Mutex
	once sync.Once
}

// NewMockDriver creates a driver with buffered streams.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		readers: make(chan Reader, 8),
		errs:    make(chan error, 8),
	}
}

func (d *MockDriver) Readers() <-chan Reader {
	return d.readers
}

func (d *MockDriver) Errors() <-chan error {
	return d.errs
}

// Attach emits r as a newly attached reader.
func (d *MockDriver) Attach(r Reader) {
	d.readers <- r
}

// Fail emits a driver error.
func (d *MockDriver) Fail(err error) {
	d.errs <- err
}

// Close closes both streams.
func (d *MockDriver) Close() error {
	d.once.Do(func() {
		close(d.readers)
		close(d.errs)
	})
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return d.CloseError
}

// RecordingSink is a ResultSink that keeps everything it receives.
type RecordingSink struct {
	Attached     []string
	Detached     []string
	ReaderErrors []error
	DriverErrors []error
	Results      []OperationResult

	// OnResult, if set, is called for every completed operation
	OnResult func(OperationResult)

	mu sync.Mutex
}

func (s *RecordingSink) ReaderAttached(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attached = append(s.Attached, name)
}

func (s *RecordingSink) ReaderDetached(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Detached = append(s.Detached, name)
}

func (s *RecordingSink) ReaderError(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReaderErrors = append(s.ReaderErrors, err)
}

func (s *RecordingSink) DriverError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DriverErrors = append(s.DriverErrors, err)
}

func (s *RecordingSink) OperationComplete(result OperationResult) {
	s.mu.Lock()
	s.Results = append(s.Results, result)
	fn := s.OnResult
	s.mu.Unlock()
	if fn != nil {
		fn(result)
	}
}

// Snapshot returns copies of the recorded results and detach names.
func (s *RecordingSink) Snapshot() (results []OperationResult, detached []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OperationResult(nil), s.Results...), append([]string(nil), s.Detached...)
}

// Counts returns the number of recorded reader and driver errors.
func (s *RecordingSink) Counts() (readerErrs, driverErrs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ReaderErrors), len(s.DriverErrors)
}
