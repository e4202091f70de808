package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	cudaext "github.com/contriboss/cuda-extension-go"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CXX", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, cudaext.DefaultHostCompiler, cfg.HostCompiler)
	require.Equal(t, cudaext.DefaultOverrideEnv, cfg.OverrideEnv)
	require.Equal(t, cudaext.DefaultBuildDir, cfg.BuildDir)
}

func TestDefaultHonoursCXX(t *testing.T) {
	t.Setenv("CXX", "clang++")
	require.Equal(t, "clang++", Default().HostCompiler)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("CXX", "clang++")
	path := writeConfig(t, `
override_env: CUDA_HOME
host_compiler: g++-12
host_flags: ["-fPIC", "-Wall"]
python: /opt/py/bin/python3
build_dir: out
log_level: debug
log_format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "CUDA_HOME", cfg.OverrideEnv)
	require.Equal(t, "g++-12", cfg.HostCompiler, "file wins over $CXX")
	require.Equal(t, []string{"-fPIC", "-Wall"}, cfg.HostFlags)
	require.Equal(t, "/opt/py/bin/python3", cfg.Python)
	require.Equal(t, "out", cfg.BuildDir)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)

	opts := cfg.LocateOptions()
	require.Equal(t, "CUDA_HOME", opts.OverrideEnv)
	require.Empty(t, opts.CompilerName)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "host_flags: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), path)
}

func TestBindingGenerator(t *testing.T) {
	cfg := Default()
	gen := cfg.Binding()
	require.Equal(t, cudaext.DefaultBindingGenerator(), gen)

	cfg.BindingGenerator = []string{"cythonize3", "-o", "{{output}}", "{{input}}"}
	gen = cfg.Binding()
	require.Equal(t, "cythonize3", gen.Name)
	require.Equal(t, cfg.BindingGenerator, gen.Command)
	require.Len(t, gen.RequiredTools(), 1)
	require.Equal(t, "cythonize3", gen.RequiredTools()[0].Name)
}
