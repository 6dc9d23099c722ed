package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solshare/pipeline/pkg/config"
)

type inner struct {
	Timeout time.Duration `env:"CFGTEST_TIMEOUT" envDefault:"3s"`
}

type sample struct {
	Name  string   `env:"CFGTEST_NAME" envDefault:"worker"`
	Count int      `env:"CFGTEST_COUNT"`
	Tags  []string `env:"CFGTEST_TAGS" envSeparator:","`
	Inner inner
}

type required struct {
	Value string `env:"CFGTEST_REQUIRED_VALUE,required"`
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("CFGTEST_COUNT", "7")
	t.Setenv("CFGTEST_TAGS", "a,b")
	t.Setenv("CFGTEST_TIMEOUT", "250ms")

	var cfg sample
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "worker", cfg.Name)
	assert.Equal(t, 7, cfg.Count)
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
	assert.Equal(t, 250*time.Millisecond, cfg.Inner.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	var nilCfg *sample
	assert.ErrorIs(t, config.Load(nilCfg), config.ErrNilPointer)

	var cfg required
	assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)

	t.Setenv("CFGTEST_COUNT", "many")
	var bad sample
	assert.ErrorIs(t, config.Load(&bad), config.ErrParsingConfig)
}

func TestMustLoad(t *testing.T) {
	var cfg required
	assert.Panics(t, func() { config.MustLoad(&cfg) })

	t.Setenv("CFGTEST_REQUIRED_VALUE", "ok")
	assert.NotPanics(t, func() { config.MustLoad(&cfg) })
	assert.Equal(t, "ok", cfg.Value)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.env")
	second := filepath.Join(dir, "second.env")
	require.NoError(t, os.WriteFile(first, []byte("CFGTEST_FILE_A=first\nCFGTEST_FILE_B=\"quoted value\"\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("CFGTEST_FILE_A=second\nCFGTEST_FILE_C=third\n"), 0o600))

	t.Setenv("CFGTEST_FILE_A", "")
	t.Setenv("CFGTEST_FILE_B", "")
	t.Setenv("CFGTEST_FILE_C", "")
	require.NoError(t, os.Unsetenv("CFGTEST_FILE_A"))
	require.NoError(t, os.Unsetenv("CFGTEST_FILE_B"))
	require.NoError(t, os.Unsetenv("CFGTEST_FILE_C"))

	require.NoError(t, config.LoadFiles(first, second))

	assert.Equal(t, "first", os.Getenv("CFGTEST_FILE_A"))
	assert.Equal(t, "quoted value", os.Getenv("CFGTEST_FILE_B"))
	assert.Equal(t, "third", os.Getenv("CFGTEST_FILE_C"))

	assert.ErrorIs(t, config.LoadFiles(filepath.Join(dir, "missing.env")), config.ErrEnvFile)
}
