package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"mkoba/internal/backend"
	"mkoba/internal/cli"
	"mkoba/internal/log"
	"mkoba/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	// Keep stdout for command output
	logger := cli.SetupLogger(io.Discard, cfg.LogLevel, log.ComponentCLI)
	if cfg.LogLevel == "debug" {
		logger = cli.SetupLogger(os.Stderr, cfg.LogLevel, log.ComponentCLI)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		return err
	}
	defer res.Close()

	app := &cli.App{
		Ledger:  services.NewLedgerService(res.Store, nil),
		Members: services.NewMemberService(res.Store, nil),
	}
	return cli.NewRootCmd(app).Execute()
}
