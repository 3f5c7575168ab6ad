package globtask

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"bud/pkg/isod"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func noopCommand(context.Context, CommandContext) error { return nil }

func TestName_FollowsGlobToExtFormat(t *testing.T) {
	task := Build(noopCommand, "src", ".kt", "out", ".class")
	require.Equal(t, "src/**/*.kt -> out/**/*.class", task.Name())
}

func TestDiscoverSources_SortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "b.kt"), "b")
	writeFile(t, filepath.Join(root, "src", "a.kt"), "a")
	writeFile(t, filepath.Join(root, "src", "nested", "c.kt"), "c")
	writeFile(t, filepath.Join(root, "src", "ignore.txt"), "x")

	task := Build(noopCommand, "src", ".kt", "out", ".class").(*Task)
	sources, err := task.discoverSources(root)
	require.NoError(t, err)
	require.Equal(t, []string{"a.kt", "b.kt", "nested/c.kt"}, sources)
}

func TestDiscoverSources_MissingSourceDirIsEmpty(t *testing.T) {
	root := t.TempDir()
	task := Build(noopCommand, "src", ".kt", "out", ".class").(*Task)
	sources, err := task.discoverSources(root)
	require.NoError(t, err)
	require.Empty(t, sources)
}

func TestWithSources_OverridesDiscovery(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.kt"), "a")
	writeFile(t, filepath.Join(root, "src", "b.kt"), "b")

	task := Build(noopCommand, "src", ".kt", "out", ".class", WithSources([]string{"b.kt", "a.kt"})).(*Task)
	sources, err := task.discoverSources(root)
	require.NoError(t, err)
	require.Equal(t, []string{"a.kt", "b.kt"}, sources)
}

func TestOutputPath_ReplacesExtensionAndPreservesSubdirs(t *testing.T) {
	require.Equal(t, "nested/c.class", OutputRelPath("nested/c.kt", ".kt", ".class"))
}

func TestOutputPaths_MapsEverySource(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.kt"), "a")
	writeFile(t, filepath.Join(root, "src", "nested", "b.kt"), "b")

	task := Build(noopCommand, "src", ".kt", "out", ".class").(*Task)
	outputs, err := task.OutputPaths(root)
	require.NoError(t, err)
	require.Equal(t, []string{"a.class", "nested/b.class"}, outputs)
}

func TestSignature_DeterministicForSameInputs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.kt"), "hello")

	task := Build(noopCommand, "src", ".kt", "out", ".class")
	sig1, err := task.Signature(root, nil)
	require.NoError(t, err)
	sig2, err := task.Signature(root, nil)
	require.NoError(t, err)
	require.Equal(t, sig1, sig2)
}

func TestSignature_ChangesWithFileContent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "src", "a.kt")
	writeFile(t, path, "hello")

	task := Build(noopCommand, "src", ".kt", "out", ".class")
	before, err := task.Signature(root, nil)
	require.NoError(t, err)

	writeFile(t, path, "goodbye")
	after, err := task.Signature(root, nil)
	require.NoError(t, err)

	require.NotEqual(t, before, after)
}

func TestSignature_UnaffectedByUnrelatedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.kt"), "hello")

	task := Build(noopCommand, "src", ".kt", "out", ".class")
	before, err := task.Signature(root, nil)
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "src", "a.txt"), "irrelevant")
	after, err := task.Signature(root, nil)
	require.NoError(t, err)

	require.Equal(t, before, after)
}

func TestExecute_InvokesCommandWithResolvedContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.kt"), "hello")

	var gotCtx CommandContext
	command := func(_ context.Context, cmdCtx CommandContext) error {
		gotCtx = cmdCtx
		return os.WriteFile(filepath.Join(cmdCtx.OutputDir, cmdCtx.OutputPath(cmdCtx.Sources[0])), []byte("compiled"), 0o644)
	}

	task := Build(command, "src", ".kt", "out", ".class")
	outDir := t.TempDir()
	err := task.Execute(context.Background(), isod.BuildTaskContext{OutputDir: outDir, SourceDir: root})
	require.NoError(t, err)

	require.Equal(t, []string{"a.kt"}, gotCtx.Sources)
	require.Equal(t, ".class", gotCtx.OutputExt)
	require.Equal(t, ".kt", gotCtx.SourceExt)
	require.Equal(t, filepath.Join(root, "src"), gotCtx.SourceDir)

	produced, err := os.ReadFile(filepath.Join(outDir, "out", "a.class"))
	require.NoError(t, err)
	require.Equal(t, "compiled", string(produced))
}

func TestExecute_PropagatesCommandError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.kt"), "hello")

	boom := func(context.Context, CommandContext) error {
		return os.ErrPermission
	}

	task := Build(boom, "src", ".kt", "out", ".class")
	err := task.Execute(context.Background(), isod.BuildTaskContext{OutputDir: t.TempDir(), SourceDir: root})
	require.ErrorIs(t, err, os.ErrPermission)
}

func TestDependencies_IsAlwaysEmpty(t *testing.T) {
	task := Build(noopCommand, "src", ".kt", "out", ".class")
	require.Empty(t, task.Dependencies())
}
