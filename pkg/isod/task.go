// Package isod implements the Isolated Signed Output Directories build
// engine: content-addressed, per-task output directories keyed by a
// strong task signature, parallel DAG execution, incremental reuse, and
// overlay assembly of a final build directory.
package isod

import "context"

// BuildTask is a named unit of work that can declare upstream tasks,
// derive a cryptographic signature from its inputs (including upstream
// signatures), and execute against a per-task output directory.
//
// A task's Signature must be deterministic and stable across processes
// and hosts for identical inputs: it must depend on every byte of every
// source file the task consumes, the signatures of all upstream tasks,
// and any algorithm-identifying constants the task embeds.
type BuildTask interface {
	// Name identifies the task for logging and error messages. It need
	// not be unique across distinct specifications that happen to
	// produce the same signature (duplicate-specification detection
	// relies on exactly this).
	Name() string

	// Dependencies returns the upstream tasks that must be executed (or
	// found cached) before this task can compute its signature or run.
	Dependencies() []BuildTask

	// Signature computes this task's content-addressed digest, given the
	// build's source directory (so the task can digest the bytes of the
	// files it consumes) and the already-computed results of its
	// dependencies in the same order Dependencies returned them. The
	// result must be safe to use as a filesystem directory name
	// (hexutil.EncodeUpper produces such strings).
	Signature(sourceDir string, deps []BuildTaskResult) (string, error)

	// Execute writes this task's outputs into bctx.OutputDir, which is
	// freshly created and empty, given the build's bctx.SourceDir. It
	// must not write outside OutputDir.
	Execute(ctx context.Context, bctx BuildTaskContext) error
}

// BuildTaskContext is passed to BuildTask.Execute.
type BuildTaskContext struct {
	// OutputDir is the task's partial output directory: the task must
	// place all produced files somewhere under this directory.
	OutputDir string
	// SourceDir is the root of the build's input tree.
	SourceDir string
}

// BuildTaskResult is produced exactly once per task per build, whether
// the task actually ran or its signature was found already cached. It is
// consumed by downstream tasks' Signature computation and by the
// engine's validation and assembly phases.
type BuildTaskResult struct {
	TaskName          string
	Signature         string
	OutputDir         string
	DependencyResults []BuildTaskResult
}

// Status describes why a ProgressFunc callback fired.
type Status int

const (
	StatusRunning Status = iota
	StatusCached
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCached:
		return "cached"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProgressFunc is an optional callback Execute invokes as each task
// starts and finishes. It is the interface through which a CLI or other
// caller implements progress display; the core engine never renders
// anything itself (progress display is an external collaborator, per
// the engine's scope).
type ProgressFunc func(task BuildTask, status Status)
