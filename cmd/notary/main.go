package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/argonprotocol/notary/archive"
	"github.com/argonprotocol/notary/config"
	"github.com/argonprotocol/notary/db"
	"github.com/argonprotocol/notary/db/badgerdb"
	"github.com/argonprotocol/notary/db/memorydb"
	"github.com/argonprotocol/notary/log"
	"github.com/argonprotocol/notary/metrics"
	"github.com/argonprotocol/notary/notebook"
	"github.com/argonprotocol/notary/relayer"
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/utils"
)

const (
	flagConfig = "config"
	flagOut    = "out"
)

var logger = log.NewLogger("notary")

func main() {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "notary",
		Short:         "localchain notary",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String(flagConfig, "", "config file path")
	rootCmd.AddCommand(runCommand(), initConfigCommand(), keygenCommand())

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal().Err(err).Send()
	}
}

func runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the notebook closer, base chain relayer and metrics server",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString(flagConfig)
			conf, err := config.Load(path, cmd)
			if err != nil {
				return err
			}
			log.Configure(conf.Log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, conf)
		},
	}
	cmd.Flags().String("data_dir", "", "ledger directory")
	cmd.Flags().Bool("in_memory", false, "keep the ledger in memory")
	cmd.Flags().String("mainchain_url", "", "base chain websocket endpoint")
	cmd.Flags().String("metrics_addr", "", "metrics listen address")
	return cmd
}

func openLedger(conf *config.Config) (db.DB, error) {
	if conf.InMemory {
		logger.Warn().Msg("ledger kept in memory, state is lost on exit")
		return memorydb.NewDB(), nil
	}
	return badgerdb.NewDB(conf.DataDir)
}

func run(ctx context.Context, conf *config.Config) error {
	key, err := utils.LoadPrivateKey(conf.KeyFile, conf.KeyPassword)
	if err != nil {
		return errors.Wrap(err, "load notary key")
	}
	database, err := openLedger(conf)
	if err != nil {
		return errors.Wrap(err, "open ledger")
	}
	defer database.Close()
	notebooks, err := archive.Open(conf.ArchivePath)
	if err != nil {
		return err
	}
	defer notebooks.Close()

	s := storage.NewStorage(database)
	ticker := conf.Ticker()
	archivers := notebook.Archivers{notebooks}

	g, ctx := errgroup.WithContext(ctx)

	var client *relayer.RPCClient
	if conf.MainchainURL != "" {
		if client, err = relayer.DialRPCClient(ctx, conf.MainchainURL, conf.NotaryID); err != nil {
			return err
		}
		defer client.Close()
		publisher := relayer.NewPublisher(client, conf.PublishQueueSize, conf.PublishRetry)
		archivers = append(archivers, publisher)
		g.Go(func() error { return publisher.Start(ctx) })
	} else {
		logger.Warn().Msg("no mainchain_url, base chain relayer disabled")
	}

	n := newNode(conf, key, s, archivers)
	g.Go(func() error { return n.Closer.Start(ctx) })

	if client != nil {
		bridge := relayer.NewBridge(relayer.BridgeConfig{
			Ticker:                  ticker,
			TransferExpirationTicks: conf.TransferExpirationTicks,
			LockTimeout:             conf.LockTimeout,
		}, client, s, n.Closer)
		g.Go(func() error { return bridge.Start(ctx) })
	}

	if conf.MetricsAddr != "" {
		server := &http.Server{
			Addr:              conf.MetricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: conf.MetricsReadHeader,
		}
		g.Go(func() error {
			logger.Info().Str("addr", conf.MetricsAddr).Msg("serving metrics")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return server.Close()
		})
	}

	logger.Info().
		Uint32("notary", conf.NotaryID).
		Str("signer", crypto.PubkeyToAddress(key.PublicKey).Hex()).
		Dur("tick", conf.TickDuration).
		Int("max_balance_changes", conf.MaxBalanceChanges).
		Msg("notary started")
	return g.Wait()
}

func initConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString(flagOut)
			if err := config.WriteDefault(out); err != nil {
				return err
			}
			logger.Info().Str("path", out).Msg("default config written")
			return nil
		},
	}
	cmd.Flags().String(flagOut, "./notary.yaml", "output path")
	return cmd
}

func keygenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "generate a notary signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString(flagOut)
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			if err := crypto.SaveECDSA(out, key); err != nil {
				return errors.Wrapf(err, "write %s", out)
			}
			logger.Info().Str("path", out).Str("address", crypto.PubkeyToAddress(key.PublicKey).Hex()).Msg("key written")
			return nil
		},
	}
	cmd.Flags().String(flagOut, "./env/notary.key", "output path")
	return cmd
}
