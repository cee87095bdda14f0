// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/tapedeck/internal/api/connect"
	"github.com/osa030/tapedeck/internal/api/tapedeckv1/tapedeckv1connect"
	"github.com/osa030/tapedeck/internal/app/engine"
	"github.com/osa030/tapedeck/internal/app/filter"
	"github.com/osa030/tapedeck/internal/app/player"
	"github.com/osa030/tapedeck/internal/infra/config"
	"github.com/osa030/tapedeck/internal/infra/logger"
)

var (
	app        = kingpin.New("tapedeck-server", "tapedeck music player server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %+v", err)
	}

	// run is separate so its defers execute before exit
	err = run(cfg)
	_ = closeLog()
	if err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := player.Build(context.Background(), cfg, engine.NewClock(engine.ClockOptions{}))
	if err != nil {
		return errors.Wrap(err, "failed to build player")
	}
	defer svc.Close()

	if err := waitForLibrary(ctx, svc); err != nil {
		return errors.Wrap(err, "streaming server unreachable")
	}

	mux := http.NewServeMux()
	path, handler := tapedeckv1connect.NewPlayerServiceHandler(
		apiconnect.NewPlayerService(svc),
		connect.WithInterceptors(apiconnect.NewAuthInterceptor(cfg.API.Token)),
	)
	mux.Handle(path, handler)

	// h2c serves HTTP/2 without TLS so server streams work for plain clients
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Give the listener a moment before hooks poke at it
	select {
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	case <-time.After(100 * time.Millisecond):
	}

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	select {
	case <-ctx.Done():
		zlog.Info().Msg("Received shutdown signal...")
	case <-svc.Done():
		zlog.Info().Msg("Player closed, shutting down...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the player first so open Subscribe streams return
	svc.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}
	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return nil
}

// waitForLibrary pings the streaming server with exponential backoff.
func waitForLibrary(ctx context.Context, svc *player.Service) error {
	const maxRetries = 5
	baseDelay := time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			delay := baseDelay * time.Duration(1<<uint(i-1))
			zlog.Info().Msgf("Retrying streaming server ping in %v...", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := svc.Ping(ctx); err != nil {
			lastErr = err
			zlog.Warn().Msgf("Streaming server ping failed (attempt %d/%d): %v", i+1, maxRetries, err)
			continue
		}
		zlog.Info().Msg("Streaming server reachable")
		return nil
	}
	return errors.Wrapf(lastErr, "failed after %d attempts", maxRetries)
}

func printFilters() {
	registry := filter.GetRegistered()
	fmt.Println("Available Filters:")
	for _, name := range filter.RegisteredNames() {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
