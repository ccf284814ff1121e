package nfc

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Phase functions, replaceable in tests.
type phaseSet struct {
	read  func(PageTransport) (ReadResult, error)
	write func(PageTransport, string) error
	lock  func(PageTransport) error
}

var defaultPhases = phaseSet{read: ReadTag, write: WriteTag, lock: LockTag}

// Orchestrator runs the read, write and lock phases against one presented tag.
type Orchestrator struct {
	config *OperationConfiguration
	logger *zap.Logger
	clock  Clock
	newID  func() string
	phases phaseSet
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithClock sets the clock used for result timestamps.
func WithClock(c Clock) OrchestratorOption {
	return func(o *Orchestrator) { o.clock = c }
}

// WithIDGenerator sets the function producing result IDs.
func WithIDGenerator(fn func() string) OrchestratorOption {
	return func(o *Orchestrator) { o.newID = fn }
}

// NewOrchestrator creates an orchestrator reading its settings from config.
func NewOrchestrator(config *OperationConfiguration, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		config: config,
		logger: logger,
		clock:  NewRealClock(),
		newID:  uuid.NewString,
		phases: defaultPhases,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle snapshots the current configuration and runs it against t.
func (o *Orchestrator) Handle(t TagTransport) OperationResult {
	return o.Run(t, o.config.Snapshot())
}

// Run executes the enabled phases in order. A failed write suppresses the
// lock phase; every other failure is recorded and the next phase still runs.
func (o *Orchestrator) Run(t TagTransport, cfg Snapshot) OperationResult {
	result := OperationResult{ID: o.newID(), UID: t.UID()}
	log := o.logger.With(zap.String("uid", result.UID))

	if cfg.Read {
		var rr ReadResult
		err := o.guard("read", func() (err error) {
			rr, err = o.phases.read(t)
			return err
		})
		if err != nil {
			log.Warn("read phase failed", zap.Error(err))
			result.Read = phaseFailure(err)
		} else {
			result.Read = &PhaseResult{OK: true, Read: &rr}
		}
	}

	writeFailed := false
	if cfg.Write {
		err := o.guard("write", func() error {
			return o.phases.write(t, cfg.MessageText())
		})
		if err != nil {
			log.Warn("write phase failed", zap.Error(err))
			result.Write = phaseFailure(err)
			writeFailed = true
		} else {
			result.Write = phaseSuccess()
		}
	}

	if cfg.ReadOnly {
		if writeFailed {
			log.Info("lock phase skipped after write failure")
			result.ReadOnly = phaseSkipped(SkippedWriteFailed)
		} else if err := o.guard("lock", func() error { return o.phases.lock(t) }); err != nil {
			log.Warn("lock phase failed", zap.Error(err))
			result.ReadOnly = phaseFailure(err)
		} else {
			result.ReadOnly = phaseSuccess()
		}
	}

	result.CompletedAt = o.clock.Now()
	return result
}

// guard runs fn and turns a panic inside it into an error.
func (o *Orchestrator) guard(phase string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("phase panicked", zap.String("phase", phase), zap.Any("panic", r))
			err = WrapError(ErrCodeTagCommunication, phase, "unexpected failure", fmt.Errorf("%v", r))
		}
	}()
	return fn()
}
