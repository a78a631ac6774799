package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/cosignhq/multisig-gateway/cmd/flags"
	"github.com/cosignhq/multisig-gateway/credential"
	"github.com/cosignhq/multisig-gateway/httpserver"
	"github.com/cosignhq/multisig-gateway/keychain"
	"github.com/cosignhq/multisig-gateway/msdb"
)

var cliFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.DBDirFlag,
	flags.NetworkFlag,
	flags.APIKeyFlag,
	flags.AdminTokenFlag,
	flags.NoAuthFlag,
	flags.WalletAuthFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "multisig-gateway",
		Usage:  "Coordinate multisig wallet setup between cosigners",
		Flags:  cliFlags,
		Action: runGateway,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runGateway(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	network, err := keychain.Network(cCtx.String(flags.NetworkFlag.Name))
	if err != nil {
		logger.Error("Invalid network", "err", err)
		return err
	}

	noAuth := cCtx.Bool(flags.NoAuthFlag.Name)
	apiKey := cCtx.String(flags.APIKeyFlag.Name)
	if apiKey == "" && !noAuth {
		// Without a configured key nobody could reach the API, so mint one
		// and log it once at startup.
		apiKey = credential.NewAPIKey()
		logger.Warn("Generated service API key", "apiKey", apiKey)
	}

	walletAuth := cCtx.Bool(flags.WalletAuthFlag.Name)
	var adminToken []byte
	if walletAuth {
		adminTokenHex := cCtx.String(flags.AdminTokenFlag.Name)
		if adminTokenHex == "" {
			adminToken = credential.NewAdminToken()
			logger.Warn("Generated admin token", "adminToken", hex.EncodeToString(adminToken))
		} else {
			adminToken, err = hex.DecodeString(adminTokenHex)
			if err != nil || len(adminToken) != 32 {
				logger.Error("Invalid admin-token, must be 64 hex chars (32 bytes)", "err", err)
				return fmt.Errorf("invalid admin-token: %v", err)
			}
		}
	}

	dbDir := cCtx.String(flags.DBDirFlag.Name)
	if dbDir == "" {
		logger.Warn("No db-dir configured, wallets will not survive a restart")
	}
	store, err := msdb.New(dbDir, network, logger)
	if err != nil {
		logger.Error("Failed to open wallet database", "err", err)
		return err
	}
	defer store.Close()

	handler := httpserver.NewHandler(&httpserver.HandlerConfig{
		Store:      store,
		Network:    network,
		WalletAuth: walletAuth,
		AdminToken: adminToken,
		Log:        logger,
	})

	cfg := flags.ConfigureServer(cCtx, logger)
	cfg.NoAuth = noAuth
	cfg.APIKeyHash = credential.HashAPIKey(apiKey)

	server, err := httpserver.New(cfg, handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting gateway", "network", network.Name, "walletAuth", walletAuth, "noAuth", noAuth)
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}
