package nfc

import (
	"fmt"
	"sync"
	"time"

	"github.com/clausecker/freefare"
	"github.com/clausecker/nfc/v2"
	"go.uber.org/zap"
)

// DeviceEnumRetries is the number of attempts made when listing libnfc devices.
const DeviceEnumRetries = 3

// LibNFCDriver implements Driver using libnfc and libfreefare. Each libnfc
// device becomes one Reader polled for Ultralight-family tags.
type LibNFCDriver struct {
	logger *zap.Logger
	clock  Clock
	device string // optional fixed connection string

	readers chan Reader
	errs    chan error

	mu       sync.Mutex
	attached map[string]*libnfcReader

	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewLibNFCDriver starts polling for libnfc devices. When device is not
// empty only that connection string is opened.
func NewLibNFCDriver(device string, logger *zap.Logger, clock Clock) *LibNFCDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = NewRealClock()
	}
	d := &LibNFCDriver{
		logger:   logger.Named("libnfc"),
		clock:    clock,
		device:   device,
		readers:  make(chan Reader),
		errs:     make(chan error, 8),
		attached: make(map[string]*libnfcReader),
		stopChan: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.poll()
	return d
}

func (d *LibNFCDriver) Readers() <-chan Reader {
	return d.readers
}

func (d *LibNFCDriver) Errors() <-chan error {
	return d.errs
}

// Close stops polling and closes every open device.
func (d *LibNFCDriver) Close() error {
	d.once.Do(func() {
		close(d.stopChan)
		d.wg.Wait()
		close(d.readers)
		close(d.errs)
	})
	return nil
}

func (d *LibNFCDriver) listDevices() ([]string, error) {
	if d.device != "" {
		return []string{d.device}, nil
	}
	var devices []string
	var err error
	for i := 0; i < DeviceEnumRetries; i++ {
		devices, err = nfc.ListDevices()
		if err == nil {
			return devices, nil
		}
		time.Sleep(time.Millisecond * 100)
	}
	return nil, fmt.Errorf("failed to list NFC devices after %d retries: %w", DeviceEnumRetries, err)
}

func (d *LibNFCDriver) poll() {
	defer d.wg.Done()

	ticker := d.clock.NewTicker(DefaultPollInterval)
	defer ticker.Stop()

	var lastErr string
	for {
		conns, err := d.listDevices()
		if err != nil {
			if err.Error() != lastErr {
				lastErr = err.Error()
				d.report(err)
			}
		} else {
			lastErr = ""
			for _, conn := range conns {
				d.open(conn)
			}
		}

		select {
		case <-d.stopChan:
			return
		case <-ticker.C():
		}
	}
}

// open starts a reader for conn unless one is already running.
func (d *LibNFCDriver) open(conn string) {
	d.mu.Lock()
	if _, ok := d.attached[conn]; ok {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	dev, err := nfc.Open(conn)
	if err != nil {
		d.logger.Debug("open failed", zap.String("device", conn), zap.Error(err))
		return
	}
	if err := dev.InitiatorInit(); err != nil {
		dev.Close()
		d.report(fmt.Errorf("failed to initialize device %s: %w", conn, err))
		return
	}

	r := &libnfcReader{
		driver: d,
		conn:   conn,
		name:   dev.String(),
		dev:    dev,
		events: make(chan ReaderEvent, 1),
		gone:   make(chan struct{}),
	}
	if r.name == "" {
		r.name = conn
	}

	d.mu.Lock()
	d.attached[conn] = r
	d.mu.Unlock()

	select {
	case d.readers <- r:
		d.wg.Add(1)
		go r.watch()
	case <-d.stopChan:
		dev.Close()
	}
}

func (d *LibNFCDriver) forget(conn string) {
	d.mu.Lock()
	delete(d.attached, conn)
	d.mu.Unlock()
}

func (d *LibNFCDriver) report(err error) {
	d.logger.Warn("driver error", zap.Error(err))
	select {
	case d.errs <- err:
	default:
		// Channel full, drop
	}
}

// libnfcReader polls one libnfc device.
type libnfcReader struct {
	driver *LibNFCDriver
	conn   string
	name   string
	dev    nfc.Device
	devMu  sync.Mutex // serializes polling and tag I/O on dev
	events chan ReaderEvent
	gone   chan struct{}
}

func (r *libnfcReader) Name() string {
	return r.name
}

func (r *libnfcReader) Events() <-chan ReaderEvent {
	return r.events
}

func (r *libnfcReader) Removed() <-chan struct{} {
	return r.gone
}

// maxConsecutiveFailures is how many failed polls in a row end a reader.
const maxConsecutiveFailures = 5

func (r *libnfcReader) watch() {
	defer r.driver.wg.Done()
	defer r.driver.forget(r.conn)
	defer close(r.events)
	defer r.dev.Close()
	defer close(r.gone)

	log := r.driver.logger.With(zap.String("reader", r.name))
	ticker := r.driver.clock.NewTicker(DefaultPollInterval)
	defer ticker.Stop()

	present := ""
	failures := 0
	for {
		r.devMu.Lock()
		tags, err := freefare.GetTags(r.dev)
		r.devMu.Unlock()
		if err != nil {
			failures++
			log.Debug("poll failed", zap.Int("failures", failures), zap.Error(err))
			if failures >= maxConsecutiveFailures {
				r.send(ReaderEvent{Type: ReaderRemoved})
				return
			}
			if failures == 1 && !r.send(ReaderEvent{Type: ReaderErrorEvent, Err: fmt.Errorf("poll %s: %w", r.name, err)}) {
				return
			}
		} else {
			failures = 0
			uid := ""
			for _, t := range tags {
				ul, ok := t.(freefare.UltralightTag)
				if !ok {
					log.Debug("ignoring unsupported tag", zap.String("uid", t.UID()), zap.String("type", fmt.Sprintf("%T", t)))
					continue
				}
				uid = ul.UID()
				// Same tag still on the reader.
				if uid == present {
					break
				}
				if !r.send(ReaderEvent{Type: TagDetected, Tag: newUltralightTag(&freefareUltralight{tag: ul}, &r.devMu)}) {
					return
				}
				break
			}
			present = uid
		}

		select {
		case <-r.driver.stopChan:
			return
		case <-ticker.C():
		}
	}
}

func (r *libnfcReader) send(ev ReaderEvent) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.driver.stopChan:
		return false
	}
}
