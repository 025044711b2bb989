// Package config loads the notary configuration from a yaml file, NOTARY_
// environment variables and command line flags, in increasing precedence.
package config

import (
	"io/ioutil"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/argonprotocol/notary/types"
)

const envPrefix = "NOTARY"

type Config struct {
	NotaryID    uint32 `mapstructure:"notary_id"`
	DataDir     string `mapstructure:"data_dir"`
	InMemory    bool   `mapstructure:"in_memory"`
	ArchivePath string `mapstructure:"archive_path"`
	KeyFile     string `mapstructure:"key_file"`
	KeyPassword string `mapstructure:"key_password"`

	TickDuration  time.Duration `mapstructure:"tick_duration"`
	GenesisUnix   int64         `mapstructure:"genesis_unix"`
	CloseInterval time.Duration `mapstructure:"close_interval"`
	LockTimeout   time.Duration `mapstructure:"lock_timeout"`

	PinSafetyOffset              uint32 `mapstructure:"pin_safety_offset"`
	MaxBalanceChanges            int    `mapstructure:"max_balance_changes"`
	MaxNotesPerChange            int    `mapstructure:"max_notes_per_change"`
	MaxBlockVotes                int    `mapstructure:"max_block_votes"`
	MaxChainTransfersPerNotebook uint32 `mapstructure:"max_chain_transfers_per_notebook"`
	TransferExpirationTicks      uint32 `mapstructure:"transfer_expiration_ticks"`

	MainchainURL      string        `mapstructure:"mainchain_url"`
	PublishQueueSize  int           `mapstructure:"publish_queue_size"`
	PublishRetry      time.Duration `mapstructure:"publish_retry"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
	MetricsReadHeader time.Duration `mapstructure:"metrics_read_header_timeout"`

	// Log is the raw log section, handed to log.Configure.
	Log *viper.Viper `mapstructure:"-"`
}

// defaults is also the layout of the file written by WriteDefault.
var defaults = yaml.MapSlice{
	{Key: "notary_id", Value: 1},
	{Key: "data_dir", Value: "./data/ledger"},
	{Key: "in_memory", Value: false},
	{Key: "archive_path", Value: "./data/archive.db"},
	{Key: "key_file", Value: "./env/notary.key"},
	{Key: "key_password", Value: ""},
	{Key: "tick_duration", Value: "1m"},
	{Key: "genesis_unix", Value: 0},
	{Key: "close_interval", Value: "1s"},
	{Key: "lock_timeout", Value: "1s"},
	{Key: "pin_safety_offset", Value: 2},
	{Key: "max_balance_changes", Value: 25},
	{Key: "max_notes_per_change", Value: 100},
	{Key: "max_block_votes", Value: 100},
	{Key: "max_chain_transfers_per_notebook", Value: 1000},
	{Key: "transfer_expiration_ticks", Value: 60},
	{Key: "mainchain_url", Value: ""},
	{Key: "publish_queue_size", Value: 64},
	{Key: "publish_retry", Value: "5s"},
	{Key: "metrics_addr", Value: ":9090"},
	{Key: "metrics_read_header_timeout", Value: "5s"},
	{Key: "log", Value: yaml.MapSlice{
		{Key: "level", Value: "info"},
		{Key: "formatter", Value: "console"},
	}},
}

// Load reads path when it is not empty and applies the environment and the
// flags of cmd when it is not nil.
func Load(path string, cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	for _, item := range defaults {
		if _, nested := item.Value.(yaml.MapSlice); nested {
			continue
		}
		v.SetDefault(item.Key.(string), item.Value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return nil, errors.Wrap(err, "bind flags")
		}
	}

	config := new(Config)
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	config.Log = v.Sub("log")
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	switch {
	case c.NotaryID == 0:
		return errors.New("notary_id must be set")
	case c.TickDuration <= 0:
		return errors.New("tick_duration must be positive")
	case c.LockTimeout <= 0:
		return errors.New("lock_timeout must be positive")
	case !c.InMemory && c.DataDir == "":
		return errors.New("data_dir must be set unless in_memory")
	}
	return nil
}

func (c *Config) Ticker() types.Ticker {
	return types.NewTicker(c.TickDuration, time.Unix(c.GenesisUnix, 0))
}

// WriteDefault writes the default configuration as yaml to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return err
	}
	return errors.Wrapf(ioutil.WriteFile(path, data, 0600), "write %s", path)
}
