package nfc

import (
	"encoding/json"
	"time"
)

// SkippedWriteFailed is recorded for the lock phase when the write phase failed.
const SkippedWriteFailed = "skipped: write failed"

// PhaseResult is the outcome of one phase of an operation.
type PhaseResult struct {
	OK      bool
	Read    *ReadResult // set for a successful read phase
	Error   string
	Code    ErrorCode
	Skipped bool
	Err     error
}

func phaseSuccess() *PhaseResult {
	return &PhaseResult{OK: true}
}

func phaseFailure(err error) *PhaseResult {
	return &PhaseResult{Error: err.Error(), Code: GetErrorCode(err), Err: err}
}

func phaseSkipped(reason string) *PhaseResult {
	return &PhaseResult{Error: reason, Skipped: true}
}

type phaseErrorJSON struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

// MarshalJSON renders a success as its payload (the read result, or true)
// and a failure as {"error": ..., "code": ...}.
func (p PhaseResult) MarshalJSON() ([]byte, error) {
	if p.OK {
		if p.Read != nil {
			return json.Marshal(p.Read)
		}
		return json.Marshal(true)
	}
	out := phaseErrorJSON{Error: p.Error, Skipped: p.Skipped}
	if p.Code != 0 {
		out.Code = p.Code.String()
	}
	return json.Marshal(out)
}

// OperationResult aggregates every phase run for one tag presentation.
type OperationResult struct {
	ID          string       `json:"id"`
	Reader      string       `json:"reader"`
	UID         string       `json:"uid,omitempty"`
	CompletedAt time.Time    `json:"completedAt"`
	Read        *PhaseResult `json:"read,omitempty"`
	Write       *PhaseResult `json:"write,omitempty"`
	ReadOnly    *PhaseResult `json:"readOnly,omitempty"`
}

// Failed reports whether any executed phase failed.
func (r OperationResult) Failed() bool {
	for _, p := range []*PhaseResult{r.Read, r.Write, r.ReadOnly} {
		if p != nil && !p.OK && !p.Skipped {
			return true
		}
	}
	return false
}
