package chatpipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for the phases a chat turn can fail in, per base spec §7's
// error taxonomy (errors propagate typed and unwrapped to the CLI boundary).
var (
	// ErrToolLoopExceeded is returned when a turn's tool-call rounds hit the
	// hard safety ceiling without the model producing a final answer.
	ErrToolLoopExceeded = errors.New("chatpipeline: tool loop exceeded maximum rounds")
	// ErrCanceled is returned when the caller's context is canceled mid-turn.
	ErrCanceled = errors.New("chatpipeline: turn canceled")
	// ErrNoActiveBackend is wrapped into the PhaseResolve error Run returns
	// when the router cannot resolve an endpoint.
	ErrNoActiveBackend = errors.New("chatpipeline: no active backend configured")
)

// Phase names a stage of the chat turn a PipelineError occurred in, so a CLI
// or caller can log or branch on where a turn failed without string-matching.
type Phase string

const (
	PhaseResolve   Phase = "resolve"
	PhaseSupervise Phase = "supervise"
	PhaseUpstream  Phase = "upstream"
	PhaseDispatch  Phase = "dispatch"
)

// PipelineError wraps an underlying error with the phase it occurred in.
type PipelineError struct {
	Phase Phase
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("chatpipeline: %s: %v", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
