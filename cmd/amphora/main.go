// Command amphora is a menmos storage node daemon: it holds blob
// bytes on local disk and answers spec.md §6's storage-node HTTP
// surface, registering itself with menmosd on startup.
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
	"github.com/menmos/menmos/pkg/directoryclient"
	"github.com/menmos/menmos/pkg/keylock"
	"github.com/menmos/menmos/pkg/log"
	"github.com/menmos/menmos/pkg/metrics"
	"github.com/menmos/menmos/pkg/protocol"
	"github.com/menmos/menmos/pkg/rebuildworker"
	"github.com/menmos/menmos/pkg/repository"
	"github.com/menmos/menmos/pkg/storageapi"
	"github.com/menmos/menmos/pkg/transfer"
	"github.com/menmos/menmos/pkg/types"
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
	Use:     "amphora",
	Short:   "amphora is a menmos storage node daemon",
	Version: Version,
	RunE:    runStorage,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("config", "amphora.yaml", "Path to the storage node's YAML config file")

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

func runStorage(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadStorageConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	disk, err := repository.NewDiskRepository(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	locks := keylock.New(time.Hour, 10000)
	repo := repository.NewConcurrentRepository(disk, locks)

	tokens := protocol.NewHMACIssuer([]byte(cfg.SigningKey), cfg.TokenTTL)
	dirClient := directoryclient.New(cfg.DirectoryAddr, nil)

	transferer := storageapi.NewPeerTransferer(repo, http.DefaultClient, tokens, cfg.NodeID)
	transferMgr := transfer.New(transferer, cfg.TransferQueueSize, cfg.ShutdownTimeout)

	srv := storageapi.NewServer(storageapi.Config{
		Repository: repo,
		Walker:     disk,
		Tokens:     tokens,
	})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Handler()}
	errCh := make(chan error, 1)
	go func() {
		log.Logger.Info().Str("addr", cfg.ListenAddr).Msg("amphora listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("storage server: %w", err)
		}
	}()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	log.Logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")

	if err := registerWithDirectory(context.Background(), cfg, disk, tokens, dirClient, transferMgr); err != nil {
		log.Logger.Error().Err(err).Msg("registration with directory failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("shutting down")
	case err := <-errCh:
		log.Logger.Error().Err(err).Msg("server error, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := transferMgr.Shutdown(shutdownCtx); err != nil {
		log.Logger.Warn().Err(err).Msg("transfer manager shutdown incomplete")
	}
	_ = metricsServer.Shutdown(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// registerWithDirectory announces this node to the directory, submits
// any moves the directory hands back, and — if this is a cold
// registration — runs a rebuild pass in the background.
func registerWithDirectory(ctx context.Context, cfg *config.StorageConfig, walker repository.Walker, tokens protocol.AuthTokenIssuer, dirClient *directoryclient.Client, transferMgr *transfer.Manager) error {
	selfToken, err := tokens.Issue(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("issue self token: %w", err)
	}

	info := types.StorageNodeInfo{
		ID:             cfg.NodeID,
		Port:           cfg.Port,
		AvailableSpace: cfg.AvailableSpace,
		RedirectInfo:   cfg.Redirect.ToRedirectInfo(),
	}

	result, err := dirClient.RegisterNode(ctx, selfToken, info)
	if err != nil {
		return fmt.Errorf("register node: %w", err)
	}

	if len(result.Moves) > 0 {
		nodes, err := dirClient.ListNodes(ctx, selfToken)
		if err != nil {
			return fmt.Errorf("list nodes to resolve moves: %w", err)
		}
		nodesByID := make(map[string]types.StorageNodeInfo, len(nodes))
		for _, n := range nodes {
			nodesByID[n.ID] = n
		}

		builder := protocol.DefaultRedirectBuilder{}
		for _, move := range result.Moves {
			blobLog := log.WithBlobID(move.BlobID)

			dest, ok := nodesByID[move.Destination]
			if !ok {
				blobLog.Warn().Str("destination", move.Destination).Msg("move destination not found, skipping")
				continue
			}
			url, err := builder.BuildURL(&dest, nil, "blob/"+move.BlobID, cfg.UseTLS, cfg.RootDomain)
			if err != nil {
				blobLog.Warn().Err(err).Msg("resolve move destination, skipping")
				continue
			}
			if err := transferMgr.Submit(transfer.MoveRequest{BlobID: move.BlobID, DestinationURL: url}); err != nil {
				blobLog.Warn().Err(err).Msg("submit move, skipping")
			}
		}
	}

	if result.RebuildRequested {
		worker := rebuildworker.New(cfg.NodeID, walker, tokens, dirClient)
		go func() {
			if err := worker.Run(context.Background()); err != nil {
				log.Logger.Error().Err(err).Msg("rebuild pass failed")
			}
		}()
	}

	return nil
}
