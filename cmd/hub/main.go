// Command hub runs the coordinator: it registers relays, routes room
// creation to the first relay with capacity, and serves the operator
// console.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/varkas/roomrelay/console"
	"github.com/varkas/roomrelay/hub"
	"github.com/varkas/roomrelay/shutdown"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	cmd := &cli.Command{
		Name:  "hub",
		Usage: "room coordinator: registers relays and routes room creation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "localhost",
				Usage: "address to bind the HTTP server to",
			},
			&cli.IntFlag{
				Name:  "port",
				Value: 8080,
				Usage: "HTTP server port",
			},
			&cli.StringFlag{
				Name:    "relays",
				Sources: cli.EnvVars("ROOMRELAY_RELAYS"),
				Usage:   "comma-separated relay addresses to register at startup",
			},
			&cli.BoolFlag{
				Name:  "no-console",
				Usage: "disable the operator console on stdin",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(cmd.Bool("debug"))

	coord := shutdown.NewCoordinator()
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		sig := <-stop
		log.Info("signal received, shutting down", "signal", sig.String())
		coord.Fire()
	}()

	relays := hub.NewRelayRegistry(log)
	for _, addr := range splitList(cmd.String("relays")) {
		if err := relays.Register(coord.Context(), addr); err != nil {
			log.Warn("startup relay registration failed", "addr", addr, "err", err)
			continue
		}
		log.Info("relay registered", "addr", addr)
	}

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      hub.NewServer(relays, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("hub listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if !cmd.Bool("no-console") {
		go func() {
			c := console.New().
				Prompt("> ").
				Command(console.ClearCommand{}).
				Command(hub.RelayCommand{Registry: relays})
			if err := c.Run(coord.Context()); err != nil {
				log.Warn("console stopped", "err", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		coord.Fire()
		return fmt.Errorf("hub server: %w", err)
	case <-coord.Done():
	case <-ctx.Done():
		coord.Fire()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "err", err)
	}
	log.Info("hub stopped")
	return nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
