// Command menmosd is the menmos directory daemon: it owns blob
// metadata, the field index, and storage-node routing, and answers
// spec.md §6's directory HTTP surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/menmos/menmos/pkg/config"
	"github.com/menmos/menmos/pkg/directoryapi"
	"github.com/menmos/menmos/pkg/docid"
	"github.com/menmos/menmos/pkg/indexer"
	"github.com/menmos/menmos/pkg/kv"
	"github.com/menmos/menmos/pkg/log"
	"github.com/menmos/menmos/pkg/mapping"
	"github.com/menmos/menmos/pkg/metadata"
	"github.com/menmos/menmos/pkg/metrics"
	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/query"
	"github.com/menmos/menmos/pkg/routing"
	"github.com/menmos/menmos/pkg/users"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "menmosd",
	Short:   "menmosd is the menmos directory daemon",
	Version: Version,
	RunE:    runDirectory,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("config", "menmosd.yaml", "Path to the directory daemon's YAML config file")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func runDirectory(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadDirectoryConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := kv.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	docids, err := docid.Open(db)
	if err != nil {
		return fmt.Errorf("open docid store: %w", err)
	}
	metaStore := metadata.Open(db)
	mappingStore := mapping.Open(db)
	routingStore := routing.Open(db)
	userStore := users.Open(db)

	policy := routing.NewPolicy(routingStore, metaStore, docids, mappingStore)
	idx := indexer.New(docids, mappingStore, metaStore, routingStore, policy)
	queryEng := query.NewEngine(metaStore, docids)
	tokens := protocol.NewHMACIssuer([]byte(cfg.SigningKey), cfg.TokenTTL)

	srv := directoryapi.NewServer(directoryapi.Config{
		Indexer:    idx,
		Query:      queryEng,
		Routing:    routingStore,
		Policy:     policy,
		Users:      userStore,
		Mapping:    mappingStore,
		Metadata:   metaStore,
		Tokens:     tokens,
		RootDomain: cfg.RootDomain,
		UseTLS:     cfg.UseTLS,
		AdminUsers: cfg.AdminUsers,
	})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Logger.Info().Str("addr", cfg.ListenAddr).Msg("menmosd listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("directory server: %w", err)
		}
	}()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	log.Logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("shutting down")
	case err := <-errCh:
		log.Logger.Error().Err(err).Msg("server error, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = metricsServer.Shutdown(ctx)
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
