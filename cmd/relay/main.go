// Command relay runs a worker node: it hosts rooms, serves WebSocket
// connections, and answers the hub's healthchecks. It can announce itself
// to a hub at startup and optionally expose itself through an ngrok tunnel.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/varkas/roomrelay/relay"
	"github.com/varkas/roomrelay/shutdown"
	"github.com/varkas/roomrelay/transport/websocket"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	cmd := &cli.Command{
		Name:  "relay",
		Usage: "room worker: hosts rooms and their WebSocket connections",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "localhost",
				Usage: "address to bind the HTTP server to",
			},
			&cli.IntFlag{
				Name:  "port",
				Value: 7000,
				Usage: "HTTP server port",
			},
			&cli.StringFlag{
				Name:  "advertise",
				Usage: "host:port clients should connect to (defaults to host:port)",
			},
			&cli.StringFlag{
				Name:    "hub",
				Sources: cli.EnvVars("ROOMRELAY_HUB"),
				Usage:   "hub address to register with at startup",
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Sources: cli.EnvVars("NGROK_ENABLED"),
				Usage:   "expose the relay through an ngrok tunnel",
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN"),
				Usage:   "ngrok auth token",
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
				Usage:   "custom ngrok domain",
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

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	advertise := cmd.String("advertise")
	if advertise == "" {
		advertise = addr
	}

	wsHub := websocket.NewHub(coord, log)
	go wsHub.Run()

	rooms := relay.NewRoomRegistry(log)
	server := relay.NewServer(rooms, wsHub, advertise, log)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("relay listening", "addr", addr, "advertise", advertise)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if hubAddr := cmd.String("hub"); hubAddr != "" {
		if err := registerWithHub(coord.Context(), hubAddr, advertise); err != nil {
			log.Warn("hub registration failed", "hub", hubAddr, "err", err)
		} else {
			log.Info("registered with hub", "hub", hubAddr)
		}
	}

	if cmd.Bool("ngrok") {
		go runNgrokTunnel(coord.Context(), cmd, server, log)
	}

	select {
	case err := <-errCh:
		coord.Fire()
		return fmt.Errorf("relay server: %w", err)
	case <-coord.Done():
	case <-ctx.Done():
		coord.Fire()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "err", err)
	}
	log.Info("relay stopped")
	return nil
}

// registerWithHub announces this relay's advertised address to the hub.
func registerWithHub(ctx context.Context, hubAddr, advertise string) error {
	body, err := json.Marshal(map[string]string{"addr": advertise})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"http://"+hubAddr+"/relay/register", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("hub returned status %d", resp.StatusCode)
	}
	return nil
}

// runNgrokTunnel serves the relay through an ngrok tunnel until ctx is
// cancelled. Tunnel failures are logged, never fatal; the local listener
// keeps serving regardless.
func runNgrokTunnel(ctx context.Context, cmd *cli.Command, handler http.Handler, log *slog.Logger) {
	token := cmd.String("ngrok-auth")
	if token == "" {
		log.Warn("ngrok enabled but no auth token provided")
		return
	}

	tunnel := ngrokConfig.HTTPEndpoint()
	if domain := cmd.String("ngrok-domain"); domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(token))
	if err != nil {
		log.Warn("ngrok tunnel failed to start", "err", err)
		return
	}
	defer tun.Close()

	log.Info("ngrok tunnel established", "url", tun.URL())
	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("ngrok server stopped", "err", err)
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
