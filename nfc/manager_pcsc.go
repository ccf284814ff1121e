package nfc

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ebfe/scard"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often drivers look for new readers.
const DefaultPollInterval = 500 * time.Millisecond

// statusWait bounds each blocking GetStatusChange so readers notice Close.
const statusWait = 500 * time.Millisecond

// PCSCDriver implements Driver using PC/SC via ebfe/scard.
type PCSCDriver struct {
	ctx    *scard.Context
	logger *zap.Logger
	clock  Clock

	readers chan Reader
	errs    chan error

	mu       sync.Mutex
	attached map[string]*pcscReader

	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewPCSCDriver establishes a PC/SC context and starts polling for readers.
func NewPCSCDriver(logger *zap.Logger, clock Clock) (*PCSCDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = NewRealClock()
	}

	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}

	d := &PCSCDriver{
		ctx:      ctx,
		logger:   logger.Named("pcsc"),
		clock:    clock,
		readers:  make(chan Reader),
		errs:     make(chan error, 8),
		attached: make(map[string]*pcscReader),
		stopChan: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.poll()
	return d, nil
}

func (d *PCSCDriver) Readers() <-chan Reader {
	return d.readers
}

func (d *PCSCDriver) Errors() <-chan error {
	return d.errs
}

// Close stops polling, ends every reader and releases the PC/SC context.
func (d *PCSCDriver) Close() error {
	var err error
	d.once.Do(func() {
		close(d.stopChan)
		// Wake any blocked GetStatusChange.
		_ = d.ctx.Cancel()
		d.wg.Wait()
		close(d.readers)
		close(d.errs)
		err = d.ctx.Release()
	})
	return err
}

func (d *PCSCDriver) poll() {
	defer d.wg.Done()

	ticker := d.clock.NewTicker(DefaultPollInterval)
	defer ticker.Stop()

	var lastErr string
	for {
		names, err := d.ctx.ListReaders()
		if err != nil && !errors.Is(err, scard.ErrNoReadersAvailable) {
			// Report each distinct failure once.
			if err.Error() != lastErr {
				lastErr = err.Error()
				d.report(fmt.Errorf("list PC/SC readers: %w", err))
			}
		} else {
			lastErr = ""
			d.sync(filterContactlessReaders(names))
		}

		select {
		case <-d.stopChan:
			return
		case <-ticker.C():
		}
	}
}

// sync starts readers that appeared and stops readers that vanished. A
// stopped reader stays in attached until its watch loop exits.
func (d *PCSCDriver) sync(names []string) {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}

	d.mu.Lock()
	var added []*pcscReader
	for _, name := range names {
		if _, ok := d.attached[name]; ok {
			continue
		}
		r := newPCSCReader(d, name)
		d.attached[name] = r
		added = append(added, r)
	}
	for name, r := range d.attached {
		if !present[name] {
			r.stop()
		}
	}
	d.mu.Unlock()

	for _, r := range added {
		select {
		case d.readers <- r:
			d.wg.Add(1)
			go r.watch()
		case <-d.stopChan:
			return
		}
	}
}

func (d *PCSCDriver) forget(r *pcscReader) {
	d.mu.Lock()
	if d.attached[r.name] == r {
		delete(d.attached, r.name)
	}
	d.mu.Unlock()
}

func (d *PCSCDriver) report(err error) {
	d.logger.Warn("driver error", zap.Error(err))
	select {
	case d.errs <- err:
	default:
		// Channel full, drop
	}
}

// pcscReader watches one PC/SC reader slot for card arrival and removal.
type pcscReader struct {
	driver *PCSCDriver
	name   string
	events chan ReaderEvent
	done   chan struct{}
	once   sync.Once
}

func newPCSCReader(d *PCSCDriver, name string) *pcscReader {
	return &pcscReader{
		driver: d,
		name:   name,
		events: make(chan ReaderEvent, 1),
		done:   make(chan struct{}),
	}
}

func (r *pcscReader) Name() string {
	return r.name
}

func (r *pcscReader) Events() <-chan ReaderEvent {
	return r.events
}

func (r *pcscReader) Removed() <-chan struct{} {
	return r.done
}

func (r *pcscReader) stop() {
	r.once.Do(func() { close(r.done) })
}

func (r *pcscReader) stopped() bool {
	select {
	case <-r.done:
		return true
	case <-r.driver.stopChan:
		return true
	default:
		return false
	}
}

func (r *pcscReader) emit(ev ReaderEvent) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	case <-r.driver.stopChan:
		return false
	}
}

// watch loops: wait for a card, hand it out, wait for it to leave.
func (r *pcscReader) watch() {
	defer r.driver.wg.Done()
	defer r.driver.forget(r)
	defer close(r.events)
	defer r.stop()
	log := r.driver.logger.With(zap.String("reader", r.name))

	states := []scard.ReaderState{{Reader: r.name, CurrentState: scard.StateUnaware}}
	var current *pcscTag

	for !r.stopped() {
		err := r.driver.ctx.GetStatusChange(states, statusWait)
		if err != nil {
			if errors.Is(err, scard.ErrTimeout) {
				continue
			}
			if errors.Is(err, scard.ErrCancelled) {
				break
			}
			if errors.Is(err, scard.ErrUnknownReader) || errors.Is(err, scard.ErrReaderUnavailable) {
				log.Info("reader gone", zap.Error(err))
				break
			}
			if !r.emit(ReaderEvent{Type: ReaderErrorEvent, Err: fmt.Errorf("status change: %w", err)}) {
				break
			}
			continue
		}

		state := states[0].EventState
		states[0].CurrentState = state &^ scard.StateChanged

		switch {
		case state&scard.StateEmpty != 0:
			if current != nil {
				_ = current.close()
				current = nil
			}
		case state&scard.StatePresent != 0 && current == nil:
			tag, err := r.connect()
			if err != nil {
				log.Debug("connect failed", zap.Error(err))
				if isNoCardError(err) {
					continue
				}
				if IsNotSupportedError(err) {
					log.Info("ignoring unsupported card", zap.Error(err))
					current = &pcscTag{}
					continue
				}
				if !r.emit(ReaderEvent{Type: ReaderErrorEvent, Err: err}) {
					continue
				}
				// Do not retry until the card is removed.
				current = &pcscTag{}
				continue
			}
			current = tag
			log.Debug("card present", zap.String("uid", tag.UID()))
			r.emit(ReaderEvent{Type: TagDetected, Tag: tag})
		}
	}

	if current != nil {
		_ = current.close()
	}
	select {
	case r.events <- ReaderEvent{Type: ReaderRemoved}:
	default:
	}
}

func (r *pcscReader) connect() (*pcscTag, error) {
	// ShareShared lets other apps use the reader; ProtocolAny lets it pick.
	card, err := r.driver.ctx.Connect(r.name, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to reader %s: %w", r.name, err)
	}
	tag, err := newPCSCTag(card)
	if err != nil {
		_ = card.Disconnect(scard.LeaveCard)
		return nil, fmt.Errorf("failed to initialize card on %s: %w", r.name, err)
	}
	return tag, nil
}

func isNoCardError(err error) bool {
	if errors.Is(err, scard.ErrNoSmartcard) || errors.Is(err, scard.ErrRemovedCard) {
		return true
	}
	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "no card") ||
		strings.Contains(errLower, "card is not present") ||
		strings.Contains(errLower, "card not present")
}
