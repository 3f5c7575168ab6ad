package isod

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"bud/pkg/buildconfig"
)

// RunBuild drives a set of high-level build tasks end to end (spec.md
// §6): it resolves baseDir and metaDir defaults, loads any .bud.json
// configuration found above baseDir, and calls Execute.
//
// baseDir defaults to the current working directory; metaDir defaults
// to baseDir/.bud unless overridden by a trailing argument or by
// configuration. Build output is written to baseDir/build.
func RunBuild(tasks []BuildTask, stdout io.Writer, baseDir string, metaDir ...string) error {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return newBuildError(IOFailure, "determining working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return newBuildError(IOFailure, "resolving base directory: %w", err)
	}

	cfg, err := buildconfig.Load(absBase)
	if err != nil {
		return err
	}

	resolvedMeta := cfg.ResolveMetaDir(absBase, false)
	if len(metaDir) > 0 && metaDir[0] != "" {
		resolvedMeta = metaDir[0]
	}

	sourceDir := absBase
	buildDir := filepath.Join(absBase, "build")

	logger := logrus.New()
	logger.SetOutput(stdout)
	if cfg.LogLevel != "" {
		if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			logger.SetLevel(lvl)
		}
	}
	entry := logrus.NewEntry(logger).WithFields(logrus.Fields{
		"sourceDir": sourceDir,
		"buildDir":  buildDir,
		"metaDir":   resolvedMeta,
	})

	progress := func(task BuildTask, status Status) {
		fmt.Fprintf(stdout, "[%s] %s\n", status, task.Name())
	}

	return Execute(context.Background(), sourceDir, buildDir, resolvedMeta, tasks,
		WithLogger(entry), WithProgress(progress), WithParallelism(cfg.Parallelism))
}
