package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	config, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), config.NotaryID)
	assert.Equal(t, time.Minute, config.TickDuration)
	assert.Equal(t, time.Second, config.LockTimeout)
	assert.Equal(t, 25, config.MaxBalanceChanges)
	assert.Equal(t, uint32(1000), config.MaxChainTransfersPerNotebook)
	assert.Equal(t, uint32(60), config.TransferExpirationTicks)
	assert.Equal(t, time.Unix(0, 0), config.Ticker().Genesis)
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notary.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tick_duration: 1m")

	config, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, config.PublishRetry)
	require.NotNil(t, config.Log)
	assert.Equal(t, "console", config.Log.GetString("formatter"))
}

func TestFileEnvAndFlagPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notary.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
notary_id: 7
tick_duration: 2s
metrics_addr: ":1000"
mainchain_url: ws://file
`), 0600))

	os.Setenv("NOTARY_METRICS_ADDR", ":2000")
	defer os.Unsetenv("NOTARY_METRICS_ADDR")

	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().String("mainchain_url", "", "")
	require.NoError(t, cmd.Flags().Set("mainchain_url", "ws://flag"))

	config, err := Load(path, cmd)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), config.NotaryID)
	assert.Equal(t, 2*time.Second, config.TickDuration)
	assert.Equal(t, ":2000", config.MetricsAddr)
	assert.Equal(t, "ws://flag", config.MainchainURL)
}

func TestUnsetFlagKeepsDefault(t *testing.T) {
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().String("metrics_addr", ":7777", "")
	config, err := Load("", cmd)
	require.NoError(t, err)
	assert.Equal(t, ":9090", config.MetricsAddr)
}

func TestValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notary.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("notary_id: 0\n"), 0600))
	_, err := Load(path, nil)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
