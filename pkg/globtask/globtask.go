// Package globtask implements the glob-to-ext build task: a concrete
// isod.BuildTask that transforms every file matching
// sourceDir/**/*.<sourceExt> into a sibling file under
// outputDir/**/*.<outputExt> by invoking a user-supplied command.
package globtask

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"bud/pkg/hexutil"
	"bud/pkg/isod"
)

// signatureVersion is folded into every signature this task class
// computes. Bumping it invalidates every cache entry produced by an
// earlier version of the signature algorithm (spec.md §9's "signature
// algorithm identity" note).
const signatureVersion = "globtask/v1"

// CommandContext is passed to a CommandFunc: the task's source and output
// directories (resolved against the build's source/output roots) and the
// fully resolved list of source files the command must transform.
type CommandContext struct {
	// SourceDir is the absolute directory the source files were
	// discovered under.
	SourceDir string
	// OutputDir is the absolute, freshly created directory the command
	// must write its outputs into.
	OutputDir string
	// SourceExt is the extension every entry in Sources ends with.
	SourceExt string
	// OutputExt is the extension (including the leading dot) every
	// produced file must use.
	OutputExt string
	// Sources is the sorted list of source files, relative to
	// SourceDir, using "/" as the separator.
	Sources []string
}

// OutputPath returns where a CommandFunc should write the transformed
// output for a given entry of CommandContext.Sources, relative to
// CommandContext.OutputDir: the same relative path with SourceExt
// replaced by OutputExt, subdirectory structure preserved.
func (c CommandContext) OutputPath(relSource string) string {
	return OutputRelPath(relSource, c.SourceExt, c.OutputExt)
}

// OutputRelPath implements the glob-to-ext output naming rule: replace a
// trailing sourceExt with outputExt, preserving everything else
// (including subdirectory structure) unchanged.
func OutputRelPath(relSource, sourceExt, outputExt string) string {
	return strings.TrimSuffix(relSource, sourceExt) + outputExt
}

// CommandFunc performs the actual source-to-output transformation. ISOD
// and globtask only define this contract and never shell out to a real
// compiler themselves; pkg/shelltask provides one implementation that
// runs an external command.
type CommandFunc func(ctx context.Context, cmdCtx CommandContext) error

// Option configures a task returned by Build.
type Option func(*Task)

// WithSources overrides the default recursive glob with an explicit list
// of source files, relative to sourceDir, using "/" as the separator.
func WithSources(sources []string) Option {
	return func(t *Task) {
		t.explicitSources = append([]string(nil), sources...)
	}
}

// Task is the concrete glob-to-ext isod.BuildTask.
type Task struct {
	command   CommandFunc
	sourceDir string
	sourceExt string
	outputDir string
	outputExt string

	explicitSources []string
}

// Build constructs a glob-to-ext task: every file under
// baseDir/sourceDir (recursively) ending in sourceExt is transformed by
// command into a sibling file under outputDir with sourceExt replaced by
// outputExt, subdirectory structure preserved.
//
// Two tasks in the same build with identical (sourceDir, sourceExt,
// outputDir, outputExt) are a duplicate specification: because they are
// literally the same logical task declared twice, they compute identical
// signatures for identical sources, and ISOD's signature-uniqueness
// check (pkg/isod) rejects the second one. Two tasks differing only in
// outputExt are allowed: their produced file sets are always disjoint.
func Build(command CommandFunc, sourceDir, sourceExt, outputDir, outputExt string, opts ...Option) isod.BuildTask {
	t := &Task{
		command:   command,
		sourceDir: filepath.ToSlash(sourceDir),
		sourceExt: sourceExt,
		outputDir: filepath.ToSlash(outputDir),
		outputExt: outputExt,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the task's display name, per spec.md §4.4:
// "<sourceDir>/**/*<sourceExt> -> <outputDir>/**/*<outputExt>".
func (t *Task) Name() string {
	return fmt.Sprintf("%s/**/*%s -> %s/**/*%s", t.sourceDir, t.sourceExt, t.outputDir, t.outputExt)
}

// Dependencies returns no upstream tasks: a glob-to-ext task only
// consumes files already present in the build's source tree.
func (t *Task) Dependencies() []isod.BuildTask {
	return nil
}

// discoverSources enumerates the task's source files relative to
// baseDir/sourceDir, sorted lexicographically on the "/"-separated
// relative path. If WithSources was used, that explicit list is sorted
// and returned instead of globbing the filesystem.
func (t *Task) discoverSources(baseDir string) ([]string, error) {
	if t.explicitSources != nil {
		sorted := append([]string(nil), t.explicitSources...)
		sort.Strings(sorted)
		return sorted, nil
	}

	root := filepath.Join(baseDir, filepath.FromSlash(t.sourceDir))
	var sources []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), t.sourceExt) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sources = append(sources, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering sources under %s: %w", root, err)
	}
	sort.Strings(sources)
	return sources, nil
}

// outputPath maps a source file's relative path to its output path,
// relative to outputDir, replacing sourceExt with outputExt and
// preserving subdirectory structure.
func (t *Task) outputPath(relSource string) string {
	trimmed := strings.TrimSuffix(relSource, t.sourceExt)
	return trimmed + t.outputExt
}

// Signature digests, in a fixed order: a version tag identifying this
// task class, the four task parameters, and for each source file (in
// sorted order) its relative path followed by its content. Glob-to-ext
// tasks have no upstream dependencies, so deps is always empty; the
// parameter exists only so the task satisfies isod.BuildTask and is not
// digested.
func (t *Task) Signature(sourceDir string, deps []isod.BuildTaskResult) (string, error) {
	sources, err := t.discoverSources(sourceDir)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(signatureVersion))
	h.Write([]byte(t.sourceDir))
	h.Write([]byte(t.sourceExt))
	h.Write([]byte(t.outputDir))
	h.Write([]byte(t.outputExt))

	root := filepath.Join(sourceDir, filepath.FromSlash(t.sourceDir))
	for _, rel := range sources {
		h.Write([]byte(rel))
		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return "", fmt.Errorf("reading source %s: %w", rel, err)
		}
		h.Write(content)
	}

	return hexutil.EncodeUpper(h.Sum(nil))
}

// Execute discovers the current sources, invokes the user-supplied
// command, and lets the command populate outputDir under bctx.OutputDir.
func (t *Task) Execute(ctx context.Context, bctx isod.BuildTaskContext) error {
	sources, err := t.discoverSources(bctx.SourceDir)
	if err != nil {
		return err
	}

	outputDir := filepath.Join(bctx.OutputDir, filepath.FromSlash(t.outputDir))
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}

	return t.command(ctx, CommandContext{
		SourceDir: filepath.Join(bctx.SourceDir, filepath.FromSlash(t.sourceDir)),
		OutputDir: outputDir,
		SourceExt: t.sourceExt,
		OutputExt: t.outputExt,
		Sources:   sources,
	})
}

// OutputPaths returns, for every discovered source file, its mapped
// output path relative to outputDir. It is exposed for commands and
// tests that need to know where to write each transformed file; using
// lo.Map keeps the mapping a one-liner over discoverSources' result.
func (t *Task) OutputPaths(baseDir string) ([]string, error) {
	sources, err := t.discoverSources(baseDir)
	if err != nil {
		return nil, err
	}
	return lo.Map(sources, func(rel string, _ int) string {
		return t.outputPath(rel)
	}), nil
}
