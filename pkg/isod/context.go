package isod

import (
	"os"
	"path/filepath"

	"github.com/sasha-s/go-deadlock"

	"bud/pkg/taskgraph"
)

// BuildExecutionContext is the per-invocation state Execute threads
// through graph construction, execution, validation and assembly.
type BuildExecutionContext struct {
	sourceDir         string
	buildDir          string
	metaDir           string
	doneOutputsDir    string
	partialOutputsDir string
	manifestDir       string

	// taskToGraph memoises BuildTask -> *taskgraph.Node during the
	// single-threaded graph-construction phase; it is never touched
	// concurrently, so it needs no locking.
	taskToGraph map[BuildTask]*taskgraph.Node

	taskToResult    *resultMap
	signatureToTask *signatureMap

	// sem bounds how many tasks may be inside Execute/task.Execute at
	// once, independent of how wide the errgroup fan-out in
	// pkg/taskgraph goes; its capacity is Config.Parallelism / CLI -j,
	// defaulting to runtime.GOMAXPROCS(0).
	sem chan struct{}
}

// newBuildExecutionContext creates the .done and .partial subdirectories
// of metaDir and returns a fresh context rooted there.
func newBuildExecutionContext(sourceDir, buildDir, metaDir string, parallelism int) (*BuildExecutionContext, error) {
	doneDir := filepath.Join(metaDir, ".done")
	partialDir := filepath.Join(metaDir, ".partial")
	manifestDir := filepath.Join(metaDir, ".manifests")

	for _, dir := range []string{doneDir, partialDir, manifestDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newBuildError(IOFailure, "creating %s: %w", dir, err)
		}
	}

	return &BuildExecutionContext{
		sourceDir:         sourceDir,
		buildDir:          buildDir,
		metaDir:           metaDir,
		doneOutputsDir:    doneDir,
		partialOutputsDir: partialDir,
		manifestDir:       manifestDir,
		taskToGraph:       make(map[BuildTask]*taskgraph.Node),
		taskToResult:      newResultMap(),
		signatureToTask:   newSignatureMap(),
		sem:               make(chan struct{}, parallelism),
	}, nil
}

// resultMap is a deadlock-safe, single-writer-per-key, multiple-reader
// map from task to its BuildTaskResult. go-deadlock is used instead of a
// plain sync.RWMutex purely to catch accidental lock-order inversions
// during development; it behaves exactly like sync.RWMutex otherwise.
type resultMap struct {
	mu deadlock.RWMutex
	m  map[BuildTask]BuildTaskResult
}

func newResultMap() *resultMap {
	return &resultMap{m: make(map[BuildTask]BuildTaskResult)}
}

func (r *resultMap) Set(task BuildTask, result BuildTaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[task] = result
}

func (r *resultMap) Get(task BuildTask) (BuildTaskResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.m[task]
	return res, ok
}

// signatureMap implements the first-writer-wins getOrAdd semantics
// spec.md requires for signature ownership.
type signatureMap struct {
	mu deadlock.Mutex
	m  map[string]BuildTask
}

func newSignatureMap() *signatureMap {
	return &signatureMap{m: make(map[string]BuildTask)}
}

// GetOrAdd returns the task already owning sig, claiming it for task if
// no owner exists yet. The boolean result reports whether task itself
// became the owner (true) or lost the race to an existing owner (false).
func (s *signatureMap) GetOrAdd(sig string, task BuildTask) (owner BuildTask, claimed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.m[sig]; ok {
		return existing, false
	}
	s.m[sig] = task
	return task, true
}

// Signatures returns a snapshot of every claimed signature in no
// particular order; the validation and assembly phases sort it for a
// deterministic iteration order.
func (s *signatureMap) Signatures() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sigs := make([]string, 0, len(s.m))
	for sig := range s.m {
		sigs = append(sigs, sig)
	}
	return sigs
}

func (s *signatureMap) TaskFor(sig string) BuildTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[sig]
}
