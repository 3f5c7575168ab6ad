package isod

import "fmt"

// Kind classifies why an ISOD operation failed, per the engine's error
// handling design: nothing is retried by the core, and every failure is
// surfaced to the caller tagged with one of these kinds.
type Kind int

const (
	// InvalidArgument marks a caller error: a bad task parameter or a
	// malformed hex/base64url string.
	InvalidArgument Kind = iota
	// DuplicateTaskSpec marks two distinct task instances that produced
	// the same signature — typically duplicate specifications.
	DuplicateTaskSpec
	// OutputCollision marks two tasks whose done directories contain the
	// same relative file path.
	OutputCollision
	// TaskExecutionFailed marks a failure raised by a task's own Execute.
	TaskExecutionFailed
	// IOFailure marks a filesystem operation failure in the engine itself.
	IOFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case DuplicateTaskSpec:
		return "DuplicateTaskSpec"
	case OutputCollision:
		return "OutputCollision"
	case TaskExecutionFailed:
		return "TaskExecutionFailed"
	case IOFailure:
		return "IOFailure"
	default:
		return "Unknown"
	}
}

// BuildError wraps every error the engine raises with the Kind that
// classifies it, so callers can branch with errors.As without parsing
// message text.
type BuildError struct {
	Kind Kind
	Err  error
}

func (e *BuildError) Error() string {
	return e.Err.Error()
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

func newBuildError(kind Kind, format string, args ...interface{}) *BuildError {
	return &BuildError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// errDuplicateSignature reports two distinct task instances that hashed
// to the same signature, in the engine's stable wording.
func errDuplicateSignature(existingName, newName, sig string) *BuildError {
	return newBuildError(DuplicateTaskSpec,
		"Tasks '%s' and '%s' are clashing. They have the same signature '%s'.",
		existingName, newName, sig)
}

// errOutputCollision reports two tasks whose done directories both
// produced the same relative file path.
func errOutputCollision(nameA, nameB, relPath string) *BuildError {
	return newBuildError(OutputCollision,
		"Tasks '%s' and '%s' are clashing. They produced the same file '%s'.",
		nameA, nameB, relPath)
}

// errCycleDetected reports a cycle found during graph construction,
// naming the task at which the cycle was closed (spec.md §9's "reject"
// resolution of the cyclic-graph open question).
func errCycleDetected(taskName string) *BuildError {
	return newBuildError(InvalidArgument,
		"cycle detected in task graph: task '%s' depends on itself, directly or transitively", taskName)
}

// errDuplicateTaskSpec reports two build-specification-level duplicate
// tasks, phrased in terms of their display names. runTaskStep uses it
// instead of errDuplicateSignature when the two tasks whose signatures
// collide also share a display name, as duplicate pkg/globtask
// specifications do.
func errDuplicateTaskSpec(nameA, nameB string) *BuildError {
	return newBuildError(DuplicateTaskSpec,
		"Clashing build specification. Found duplicate tasks: '%s' and '%s'.",
		nameA, nameB)
}
