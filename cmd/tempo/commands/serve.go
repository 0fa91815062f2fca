package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/config"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/server"
)

// ServeCmd runs the tempo daemon
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server", "start"},
	Short:   "Start the tempo daemon (scheduler + HTTP control API)",
	Long: `Start the tempo daemon in the foreground.

The daemon arms an executor for every stored task, spawns their commands on
schedule, records run history with captured output, and serves the HTTP API
this CLI and web clients talk to. Edits to the config file are picked up
without a restart.`,
	RunE: runServe,
}

var (
	serveDBPath  string
	servePort    int
	serveAutorun bool
)

func init() {
	ServeCmd.Flags().StringVar(&serveDBPath, "db-path", "", "Custom database path (overrides config)")
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	ServeCmd.Flags().BoolVar(&serveAutorun, "autorun", false, "Run all executors after the initial sync")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Default the daemon to Info so startup and run logs are visible
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
		if err := logger.InitializeWithLevel(false, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("autorun") {
		cfg.Scheduler.Autorun = serveAutorun
	}
	if serveDBPath != "" {
		cfg.Database.Path = serveDBPath
	}

	dbPath := cfg.GetDatabasePath()

	database, err := openDatabase(dbPath)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	srv := server.NewServer(database, cfg, logger.ComponentLogger("server"))

	// Watch the user config so origin and autorun edits apply live. A missing
	// file is fine, fsnotify needs an existing path to watch.
	configPath := config.UserConfigPath()
	if _, statErr := os.Stat(configPath); statErr == nil {
		watcher, err := config.NewConfigWatcher(configPath)
		if err != nil {
			logger.Warnw("Config watcher disabled", "path", configPath, "error", err)
		} else {
			watcher.OnReload(srv.UpdateConfig)
			config.SetGlobalWatcher(watcher)
			watcher.Start()
			defer watcher.Stop()
		}
	}

	printStartupBanner(verbosity, dbPath, cfg.Server.Addr())

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		// Server failed to start or stopped unexpectedly
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		// First Ctrl+C - graceful shutdown
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		// Wait for either shutdown completion or second Ctrl+C
		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			// Second Ctrl+C - force immediate exit
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}
