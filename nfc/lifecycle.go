package nfc

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// TagHandler runs one orchestration for a presented tag.
type TagHandler interface {
	Handle(t TagTransport) OperationResult
}

// readerHandle tracks an attached reader and serializes work on it.
type readerHandle struct {
	reader Reader
	mu     sync.Mutex
	exited chan struct{} // closed once the worker has detached
}

// removing reports whether the handle's reader has announced its removal.
func (h *readerHandle) removing() bool {
	n, ok := h.reader.(RemovalNotifier)
	if !ok {
		return false
	}
	select {
	case <-n.Removed():
		return true
	default:
		return false
	}
}

// LifecycleManager attaches readers reported by a driver and runs one worker
// per reader that drains its events strictly in order.
type LifecycleManager struct {
	handler TagHandler
	sink    ResultSink
	logger  *zap.Logger

	mu      sync.Mutex
	readers map[string]*readerHandle
	wg      sync.WaitGroup
}

// NewLifecycleManager creates a manager that hands tags to handler and
// reports everything to sink.
func NewLifecycleManager(handler TagHandler, sink ResultSink, logger *zap.Logger) *LifecycleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleManager{
		handler: handler,
		sink:    sink,
		logger:  logger,
		readers: make(map[string]*readerHandle),
	}
}

// Run consumes the driver's reader and error streams until ctx is done or
// both streams are closed. It does not close the driver.
func (m *LifecycleManager) Run(ctx context.Context, driver Driver) error {
	readers := driver.Readers()
	errs := driver.Errors()

	for readers != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-readers:
			if !ok {
				readers = nil
				continue
			}
			if err := m.Attach(ctx, r); err != nil {
				m.logger.Warn("reader rejected", zap.String("reader", r.Name()), zap.Error(err))
				m.sink.ReaderError(r.Name(), err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.logger.Error("driver error", zap.Error(err))
			m.sink.DriverError(err)
		}
	}
	return nil
}

// Attach registers r and starts its worker. A second reader with the same
// name is rejected while the first is attached, unless the first has
// announced its removal: then r is attached once the old worker exits.
func (m *LifecycleManager) Attach(ctx context.Context, r Reader) error {
	name := r.Name()

	m.mu.Lock()
	if old, exists := m.readers[name]; exists {
		if !old.removing() {
			m.mu.Unlock()
			return fmt.Errorf("reader %q already attached", name)
		}
		m.wg.Add(1)
		m.mu.Unlock()

		m.logger.Debug("reader reattaching", zap.String("reader", name))
		go m.attachAfter(ctx, old, r)
		return nil
	}
	h := &readerHandle{reader: r, exited: make(chan struct{})}
	m.readers[name] = h
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("reader attached", zap.String("reader", name))
	m.sink.ReaderAttached(name)

	go m.work(ctx, h)
	return nil
}

func (m *LifecycleManager) attachAfter(ctx context.Context, old *readerHandle, r Reader) {
	defer m.wg.Done()
	select {
	case <-old.exited:
	case <-ctx.Done():
		return
	}
	if err := m.Attach(ctx, r); err != nil {
		m.logger.Warn("reader rejected", zap.String("reader", r.Name()), zap.Error(err))
		m.sink.ReaderError(r.Name(), err)
	}
}

// Readers returns the names of the attached readers, sorted.
func (m *LifecycleManager) Readers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.readers))
	for name := range m.readers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Wait blocks until every reader worker has exited.
func (m *LifecycleManager) Wait() {
	m.wg.Wait()
}

func (m *LifecycleManager) work(ctx context.Context, h *readerHandle) {
	defer m.wg.Done()
	name := h.reader.Name()
	defer m.detach(h)

	events := h.reader.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case TagDetected:
				if ev.Tag == nil {
					continue
				}
				m.handleTag(h, ev.Tag)
			case ReaderErrorEvent:
				m.logger.Warn("reader error", zap.String("reader", name), zap.Error(ev.Err))
				m.sink.ReaderError(name, ev.Err)
			case ReaderRemoved:
				return
			}
		}
	}
}

func (m *LifecycleManager) handleTag(h *readerHandle, t TagTransport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	name := h.reader.Name()
	m.logger.Debug("tag detected", zap.String("reader", name), zap.String("uid", t.UID()))

	result := m.handler.Handle(t)
	result.Reader = name
	m.sink.OperationComplete(result)
}

func (m *LifecycleManager) detach(h *readerHandle) {
	name := h.reader.Name()
	m.mu.Lock()
	if m.readers[name] == h {
		delete(m.readers, name)
	}
	m.mu.Unlock()

	m.logger.Info("reader detached", zap.String("reader", name))
	m.sink.ReaderDetached(name)
	close(h.exited)
}
