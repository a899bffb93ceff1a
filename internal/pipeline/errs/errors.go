/*
Package errs defines the pipeline's error taxonomy as typed error
values. Handlers convert every failure into one of these before
returning — they never let a raw error or a panic cross the driver
boundary (the driver recovers panics itself as a last resort; see
internal/pipeline/driver).
*/
package errs

import "fmt"

// Kind classifies a pipeline error for the driver's dispatch logic.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindTransient     Kind = "transient_collaborator"
	KindStructured    Kind = "structured_tool"
	KindBuilder       Kind = "builder_failure"
	KindGateBlocking  Kind = "gate_blocking"
	KindBudget        Kind = "budget_exceeded"
	KindInterrupt     Kind = "interrupt"
	KindInvariant     Kind = "invariant_violation"
)

// PipelineError is the common shape for every taxonomy member.
type PipelineError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

func newErr(k Kind, msg string, cause error) *PipelineError {
	return &PipelineError{Kind: k, Message: msg, Cause: cause}
}

func Configuration(msg string, cause error) *PipelineError { return newErr(KindConfiguration, msg, cause) }
func Transient(msg string, cause error) *PipelineError      { return newErr(KindTransient, msg, cause) }
func Structured(msg string, cause error) *PipelineError     { return newErr(KindStructured, msg, cause) }
func Builder(msg string, cause error) *PipelineError        { return newErr(KindBuilder, msg, cause) }
func GateBlocking(msg string) *PipelineError                { return newErr(KindGateBlocking, msg, nil) }
func Budget(msg string) *PipelineError                      { return newErr(KindBudget, msg, nil) }
func Interrupt(msg string) *PipelineError                   { return newErr(KindInterrupt, msg, nil) }
func Invariant(msg string, cause error) *PipelineError      { return newErr(KindInvariant, msg, cause) }

// Is reports whether err itself is a *PipelineError of kind k; it does
// not unwrap err.
func Is(err error, k Kind) bool {
	pe, ok := err.(*PipelineError)
	if !ok {
		return false
	}
	return pe.Kind == k
}
