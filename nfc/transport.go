package nfc

// PageTransport moves raw bytes to and from a Type 2 tag addressed by 4-byte pages.
// Implementations may block; they must not retain the slices they are given.
type PageTransport interface {
	// ReadPages reads n bytes starting at page. Implementations may return
	// more than n bytes; callers only look at the first n.
	ReadPages(page byte, n int) ([]byte, error)
	// WritePages writes data starting at page. len(data) is a multiple of
	// BlockSize.
	WritePages(page byte, data []byte) error
}

// TagTransport is a PageTransport bound to one presented tag.
type TagTransport interface {
	PageTransport
	// UID returns the tag UID in uppercase hex, or "" when unknown.
	UID() string
}

// ReaderEventType discriminates the events a Reader emits.
type ReaderEventType int

const (
	// TagDetected carries a transport to a freshly presented tag.
	TagDetected ReaderEventType = iota
	// ReaderErrorEvent carries a reader-level error; the reader stays attached.
	ReaderErrorEvent
	// ReaderRemoved signals that the reader is gone.
	ReaderRemoved
)

func (t ReaderEventType) String() string {
	switch t {
	case TagDetected:
		return "tag-detected"
	case ReaderErrorEvent:
		return "reader-error"
	case ReaderRemoved:
		return "reader-removed"
	default:
		return "unknown"
	}
}

// ReaderEvent is one item on a Reader's event stream.
type ReaderEvent struct {
	Type ReaderEventType
	Tag  TagTransport // set for TagDetected
	Err  error        // set for ReaderErrorEvent
}

// Reader is one attached physical reader.
type Reader interface {
	Name() string
	// Events is closed when the reader goes away.
	Events() <-chan ReaderEvent
}

// RemovalNotifier is implemented by readers that know they are going away
// before their event stream has been drained. Removed is closed at that point.
type RemovalNotifier interface {
	Removed() <-chan struct{}
}

// Driver discovers readers.
type Driver interface {
	// Readers emits each reader once when it is attached.
	Readers() <-chan Reader
	// Errors emits driver-level failures.
	Errors() <-chan error
	Close() error
}

// ResultSink receives everything the lifecycle manager reports.
type ResultSink interface {
	ReaderAttached(name string)
	ReaderDetached(name string)
	ReaderError(name string, err error)
	DriverError(err error)
	OperationComplete(result OperationResult)
}
