package log

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configure(t *testing.T, toml string) {
	conf := viper.New()
	conf.SetConfigType("toml")
	require.NoError(t, conf.ReadConfig(strings.NewReader(toml)))
	Configure(conf)
}

func TestDefaultLevel(t *testing.T) {
	Configure(nil)
	assert.Equal(t, "info", Default().Level())
}

func TestBaseLevel(t *testing.T) {
	configure(t, `level = "error"`)
	logger := NewLogger("test_logger")
	assert.Equal(t, "error", logger.Level())
	assert.Equal(t, "test_logger", logger.Name())
}

func TestSubModuleLevel(t *testing.T) {
	configure(t, `
level = "error"

[sub_module]
level = "warn"
`)
	assert.Equal(t, "error", Default().Level())
	assert.Equal(t, "warn", NewLogger("sub_module").Level())
	assert.Equal(t, "error", NewLogger("other_module").Level())
}

func TestConfigureRebuildsModuleLoggers(t *testing.T) {
	configure(t, `level = "info"`)
	logger := NewLogger("early_logger")
	assert.False(t, logger.IsDebugEnabled())

	configure(t, `
[early_logger]
level = "debug"
`)
	assert.True(t, logger.IsDebugEnabled())
	assert.Equal(t, "debug", logger.Level())
}

func TestIsDebugEnabled(t *testing.T) {
	configure(t, `level = "warn"`)
	assert.False(t, NewLogger("warn_logger").IsDebugEnabled())

	configure(t, `level = "debug"`)
	assert.True(t, NewLogger("debug_logger").IsDebugEnabled())
}

func TestGetOutput(t *testing.T) {
	dir, err := ioutil.TempDir("", "notarylog")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	tests := []struct {
		name    string
		arg     string
		wantOut *os.File
		wantErr bool
	}{
		{"empty", "", nil, true},
		{"stdout", "stdout", os.Stdout, false},
		{"stderr", "stderr", os.Stderr, false},
		{"file", filepath.Join(dir, "out.log"), nil, false},
		{"missing dir", filepath.Join(dir, "no", "where", "out.log"), nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := getOutput(test.arg)
			if test.wantOut != nil {
				assert.Equal(t, test.wantOut, got)
			}
			assert.Equal(t, test.wantErr, err != nil)
		})
	}
}

func TestFileOutByModule(t *testing.T) {
	dir, err := ioutil.TempDir("", "notarylog")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	baseLogName := filepath.ToSlash(filepath.Join(dir, "base.log"))
	closerLogName := filepath.ToSlash(filepath.Join(dir, "closer.log"))

	configure(t, `
out = "`+baseLogName+`"
level = "info"

[closer]
out = "`+closerLogName+`"
`)

	NewLogger("closer").Info().Msg("closer write")
	NewLogger("pipeline").Info().Msg("pipeline write")

	baseContent, err := ioutil.ReadFile(baseLogName)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(baseContent, []byte("pipeline write")))
	assert.False(t, bytes.Contains(baseContent, []byte("closer write")))

	closerContent, err := ioutil.ReadFile(closerLogName)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(closerContent, []byte("closer write")))
}
