package isod

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"bud/internal/fsutil"
	"bud/pkg/taskgraph"
)

// Execute is the ISOD engine's direct entry point (spec.md §6). It
// builds a task graph from tasks, runs it with dependency ordering and
// parallelism, verifies no two tasks produced a colliding signature or a
// colliding output file, and assembles buildDir as the overlay of every
// task's output.
func Execute(ctx context.Context, sourceDir, buildDir, metaDir string, tasks []BuildTask, opts ...Option) error {
	cfg := newOptions(opts...)

	if err := detectCycles(tasks); err != nil {
		return err
	}

	bec, err := newBuildExecutionContext(sourceDir, buildDir, metaDir, cfg.parallelism)
	if err != nil {
		return err
	}

	cfg.logger.WithFields(logrus.Fields{"tasks": len(tasks), "sourceDir": sourceDir}).Debug("building task graph")
	root, err := buildRootNode(bec, tasks, cfg)
	if err != nil {
		return err
	}

	cfg.logger.Debug("executing task graph")
	if err := root.Run(ctx); err != nil {
		var runErr *taskgraph.RunError
		if ok := unwrapRunError(err, &runErr); ok {
			return runErr.Err
		}
		return err
	}

	cfg.logger.Debug("validating task outputs")
	if err := validateNoCollisions(bec); err != nil {
		return err
	}

	cfg.logger.Debug("assembling build directory")
	if err := assemble(bec); err != nil {
		return err
	}

	return nil
}

func unwrapRunError(err error, target **taskgraph.RunError) bool {
	re, ok := err.(*taskgraph.RunError)
	if !ok {
		return false
	}
	*target = re
	return true
}

// buildRootNode performs the single-threaded graph-construction phase:
// each root task becomes a taskgraph.Node via getOrCreateTaskGraph,
// memoised so a task shared by multiple parents becomes one node, and
// the synthetic root fans in over all of them.
func buildRootNode(bec *BuildExecutionContext, tasks []BuildTask, cfg *options) (*taskgraph.Node, error) {
	nodes := make([]*taskgraph.Node, 0, len(tasks))
	for _, t := range tasks {
		node, err := getOrCreateTaskGraph(bec, t, cfg)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return taskgraph.NewAggregateNode(nodes...), nil
}

func getOrCreateTaskGraph(bec *BuildExecutionContext, task BuildTask, cfg *options) (*taskgraph.Node, error) {
	if node, ok := bec.taskToGraph[task]; ok {
		return node, nil
	}

	upstreams := make([]*taskgraph.Node, 0, len(task.Dependencies()))
	for _, dep := range task.Dependencies() {
		node, err := getOrCreateTaskGraph(bec, dep, cfg)
		if err != nil {
			return nil, err
		}
		upstreams = append(upstreams, node)
	}

	node := taskgraph.NewNode(task.Name(), func(ctx context.Context) error {
		return runTaskStep(ctx, bec, task, cfg)
	}, upstreams...)

	bec.taskToGraph[task] = node
	return node, nil
}

// runTaskStep is the action each non-aggregate node runs (spec.md §4.3):
// gather dependency results, compute and claim the signature, skip if
// already done, otherwise execute into a fresh partial directory and
// atomically publish it.
func runTaskStep(ctx context.Context, bec *BuildExecutionContext, task BuildTask, cfg *options) error {
	deps := make([]BuildTaskResult, 0, len(task.Dependencies()))
	for _, dep := range task.Dependencies() {
		res, ok := bec.taskToResult.Get(dep)
		if !ok {
			return newBuildError(IOFailure, "internal error: dependency %q of %q has no recorded result", dep.Name(), task.Name())
		}
		deps = append(deps, res)
	}

	sig, err := task.Signature(bec.sourceDir, deps)
	if err != nil {
		return &BuildError{Kind: InvalidArgument, Err: fmt.Errorf("computing signature for %q: %w", task.Name(), err)}
	}

	owner, claimed := bec.signatureToTask.GetOrAdd(sig, task)
	if !claimed {
		if owner.Name() == task.Name() {
			return errDuplicateTaskSpec(owner.Name(), task.Name())
		}
		return errDuplicateSignature(owner.Name(), task.Name(), sig)
	}

	log := cfg.logger.WithFields(logrus.Fields{"task": task.Name(), "signature": sig})

	doneDir := filepath.Join(bec.doneOutputsDir, sig)
	if dirExists(doneDir) {
		log.Info("cache hit, skipping execution")
		notify(cfg, task, StatusCached)
	} else {
		if err := executeIntoPartial(ctx, bec, task, sig, doneDir, cfg, log); err != nil {
			notify(cfg, task, StatusFailed)
			return err
		}
	}

	bec.taskToResult.Set(task, BuildTaskResult{
		TaskName:          task.Name(),
		Signature:         sig,
		OutputDir:         doneDir,
		DependencyResults: deps,
	})
	return nil
}

func executeIntoPartial(ctx context.Context, bec *BuildExecutionContext, task BuildTask, sig, doneDir string, cfg *options, log *logrus.Entry) error {
	select {
	case bec.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-bec.sem }()

	partialDir := filepath.Join(bec.partialOutputsDir, sig)
	if err := os.RemoveAll(partialDir); err != nil {
		return newBuildError(IOFailure, "clearing stale partial directory %s: %w", partialDir, err)
	}
	if err := os.MkdirAll(partialDir, 0o755); err != nil {
		return newBuildError(IOFailure, "creating partial directory %s: %w", partialDir, err)
	}

	log.Info("running task")
	notify(cfg, task, StatusRunning)

	if err := task.Execute(ctx, BuildTaskContext{OutputDir: partialDir, SourceDir: bec.sourceDir}); err != nil {
		return &BuildError{Kind: TaskExecutionFailed, Err: fmt.Errorf("task %q failed: %w", task.Name(), err)}
	}

	files, err := fsutil.ListFilesRelative(partialDir)
	if err != nil {
		return newBuildError(IOFailure, "listing outputs of %s: %w", task.Name(), err)
	}

	if err := os.Rename(partialDir, doneDir); err != nil {
		if dirExists(doneDir) {
			// Another equivalent task instance (or a prior run) won the
			// race; the existing done directory is authoritative.
			log.Info("lost the race to publish; discarding partial output")
			_ = os.RemoveAll(partialDir)
		} else {
			return newBuildError(IOFailure, "publishing %s to %s: %w", partialDir, doneDir, err)
		}
	} else if err := fsutil.WriteManifest(bec.manifestDir, sig, files); err != nil {
		return newBuildError(IOFailure, "writing manifest for %s: %w", task.Name(), err)
	}

	notify(cfg, task, StatusDone)
	return nil
}

func notify(cfg *options, task BuildTask, status Status) {
	if cfg.progress != nil {
		cfg.progress(task, status)
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// validateNoCollisions implements spec.md §4.3's validation phase: walk
// every claimed signature in deterministic order, enumerate its output
// files relative to its done directory, and fail if the same relative
// path is owned by two different tasks.
func validateNoCollisions(bec *BuildExecutionContext) error {
	sigs := bec.signatureToTask.Signatures()
	sort.Strings(sigs)

	owners := make(map[string]BuildTask)
	for _, sig := range sigs {
		task := bec.signatureToTask.TaskFor(sig)
		files, err := filesForSignature(bec, sig)
		if err != nil {
			return newBuildError(IOFailure, "enumerating outputs for signature %s: %w", sig, err)
		}
		for _, rel := range files {
			if existing, ok := owners[rel]; ok && existing != task {
				return errOutputCollision(existing.Name(), task.Name(), rel)
			}
			owners[rel] = task
		}
	}
	return nil
}

// filesForSignature prefers the atomically published manifest and falls
// back to walking the done directory when no manifest is present (an
// older cache entry, or one whose manifest write was interrupted).
func filesForSignature(bec *BuildExecutionContext, sig string) ([]string, error) {
	if manifest, err := fsutil.ReadManifest(bec.manifestDir, sig); err == nil {
		return manifest.Files, nil
	}
	return fsutil.ListFilesRelative(filepath.Join(bec.doneOutputsDir, sig))
}

// assemble implements spec.md §4.3's assembly phase: wipe buildDir if it
// exists, then overlay every referenced done directory's tree into it.
// Overlay order is immaterial because validateNoCollisions already
// guaranteed the trees are disjoint.
func assemble(bec *BuildExecutionContext) error {
	if _, err := os.Stat(bec.buildDir); err == nil {
		if err := os.RemoveAll(bec.buildDir); err != nil {
			return newBuildError(IOFailure, "removing stale build directory %s: %w", bec.buildDir, err)
		}
	}
	if err := os.MkdirAll(bec.buildDir, 0o755); err != nil {
		return newBuildError(IOFailure, "creating build directory %s: %w", bec.buildDir, err)
	}

	sigs := bec.signatureToTask.Signatures()
	sort.Strings(sigs)
	for _, sig := range sigs {
		src := filepath.Join(bec.doneOutputsDir, sig)
		if err := fsutil.CopyTree(src, bec.buildDir); err != nil {
			return newBuildError(IOFailure, "overlaying %s into %s: %w", src, bec.buildDir, err)
		}
	}
	return nil
}

// detectCycles rejects cyclic dependency graphs during construction
// (spec.md §9's "reject" resolution), via a DFS coloring pass naming the
// task at which a back edge is found.
func detectCycles(tasks []BuildTask) error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[BuildTask]int)

	var visit func(task BuildTask) error
	visit = func(task BuildTask) error {
		switch color[task] {
		case black:
			return nil
		case gray:
			return errCycleDetected(task.Name())
		}
		color[task] = gray
		for _, dep := range task.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[task] = black
		return nil
	}

	for _, t := range lo.Uniq(tasks) {
		if err := visit(t); err != nil {
			return err
		}
	}
	return nil
}
