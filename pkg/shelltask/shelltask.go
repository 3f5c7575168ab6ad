// Package shelltask adapts an external compiler or transform binary into
// a globtask.CommandFunc: the same "invoke a real tool with a fixed
// argument template" pattern the teacher's compiler tasks use, minus any
// knowledge of a specific toolchain.
package shelltask

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"bud/pkg/globtask"
)

const (
	srcPlaceholder = "{{src}}"
	outPlaceholder = "{{out}}"
)

// Command returns a globtask.CommandFunc that runs name once per source
// file, substituting srcPlaceholder and outPlaceholder in args with the
// file's absolute source path and its mapped absolute output path. The
// output file's parent directory is created before the command runs; the
// command itself is responsible for writing it.
func Command(name string, args ...string) globtask.CommandFunc {
	template := append([]string(nil), args...)
	return func(ctx context.Context, cmdCtx globtask.CommandContext) error {
		for _, rel := range cmdCtx.Sources {
			srcPath := filepath.Join(cmdCtx.SourceDir, filepath.FromSlash(rel))
			outRel := cmdCtx.OutputPath(rel)
			outPath := filepath.Join(cmdCtx.OutputDir, filepath.FromSlash(outRel))

			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("creating output directory for %s: %w", rel, err)
			}

			resolved := make([]string, len(template))
			for i, a := range template {
				a = strings.ReplaceAll(a, srcPlaceholder, srcPath)
				a = strings.ReplaceAll(a, outPlaceholder, outPath)
				resolved[i] = a
			}

			cmd := exec.CommandContext(ctx, name, resolved...)
			cmd.Dir = cmdCtx.OutputDir
			if output, err := cmd.CombinedOutput(); err != nil {
				return fmt.Errorf("%s %s failed: %w\noutput:\n%s", name, rel, err, output)
			}
		}
		return nil
	}
}
