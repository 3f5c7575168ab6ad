package buildconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MergesRootToLeafWithLeafWinning(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "project", "module")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, "project", configFileName),
		[]byte(`{"parallelism": 4, "logLevel": "warn"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, configFileName),
		[]byte(`{"logLevel": "debug"}`), 0o644))

	cfg, err := Load(sub)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Parallelism)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_TasksReplacedWholesaleByLeaf(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, configFileName),
		[]byte(`{"tasks": [{"sourceDir": "a", "sourceExt": ".x", "outputDir": "outa", "outputExt": ".y", "command": "echo"}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, configFileName),
		[]byte(`{"tasks": [{"sourceDir": "b", "sourceExt": ".x", "outputDir": "outb", "outputExt": ".y", "command": "echo"}]}`), 0o644))

	cfg, err := Load(sub)
	require.NoError(t, err)
	require.Len(t, cfg.Tasks, 1)
	require.Equal(t, "b", cfg.Tasks[0].SourceDir)
}

func TestLoad_NoConfigFiles(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, &Config{}, cfg)
}

func TestLoad_ParallelismEnvOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName),
		[]byte(`{"parallelism": 2}`), 0o644))

	t.Setenv("BUD_PARALLELISM", "7")

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Parallelism)
}

func TestResolveMetaDir_ExplicitOverrideWins(t *testing.T) {
	cfg := &Config{MetaDir: "custom-meta"}
	got := cfg.ResolveMetaDir("/base", false)
	require.Equal(t, filepath.Join("/base", "custom-meta"), got)
}

func TestResolveMetaDir_DefaultsToDotBud(t *testing.T) {
	cfg := &Config{}
	got := cfg.ResolveMetaDir("/base", false)
	require.Equal(t, filepath.Join("/base", ".bud"), got)
}
