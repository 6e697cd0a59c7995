// Command mergegame serves the merge puzzle game.
//
// It supports two modes:
//  1. "server" (default) runs the HTTP server exposing the REST API, WebSocket and an /mcp endpoint
//  2. "stdio-mcp" runs an MCP stdio server against an external API, or an internal one if none answers
//
// Settings come from flags, MERGEGAME_* environment variables and an optional
// settings file. An ngrok tunnel can expose the server during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/mergegame/api"
	"github.com/wricardo/mcp-training/mergegame/game/config"
	"github.com/wricardo/mcp-training/mergegame/game/results"
	"github.com/wricardo/mcp-training/mergegame/game/service"
	"github.com/wricardo/mcp-training/mergegame/game/session"
	"github.com/wricardo/mcp-training/mergegame/transport/mcp"
	"github.com/wricardo/mcp-training/mergegame/transport/nats"
	"github.com/wricardo/mcp-training/mergegame/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Merge Game Server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	loadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("mergegame failed")
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:           "mergegame",
		Usage:          AppName,
		Version:        Version,
		Flags:          globalFlags(),
		Before:         setupLogging,
		DefaultCommand: "server",
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "run the HTTP server with REST API, WebSocket and MCP endpoint",
				Action:  runServer,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "run an MCP stdio server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Usage: "reuse this API instead of probing host:port"},
				},
				Action: runStdio,
			},
		},
	}
}

// app holds the wired services shared by both modes.
type app struct {
	settings settings
	configs  *config.Manager
	sessions *session.Manager
	store    results.Store
	events   *nats.Publisher
	game     service.GameService
}

// newAppServices wires config and session managers, the result store, the
// optional event publisher and the game service.
func newAppServices(ctx context.Context, s settings) (*app, error) {
	configs, err := config.NewManager(s.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("create config manager: %w", err)
	}

	var store results.Store
	if s.DBPath != "" {
		sqlite, err := results.OpenSQLite(s.DBPath)
		if err != nil {
			return nil, err
		}
		store = sqlite
		log.Info().Str("path", s.DBPath).Msg("leaderboard stored in sqlite")
	} else {
		store = results.NewMemoryStore()
	}

	a := &app{
		settings: s,
		configs:  configs,
		sessions: session.NewManager(),
		store:    store,
	}

	opts := []service.Option{service.WithResultStore(store)}
	if s.NatsURL != "" {
		publisher, err := nats.Connect(ctx, s.NatsURL, nats.Options{Prefix: s.NatsPrefix})
		if err != nil {
			store.Close()
			return nil, err
		}
		a.events = publisher
		opts = append(opts, service.WithEventPublisher(publisher))
	}

	a.game = service.NewGameService(a.sessions, configs, opts...)
	return a, nil
}

func (a *app) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			log.Warn().Err(err).Msg("drain nats connection")
		}
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("close result store")
	}
}

// cleanupSessions drops idle sessions until ctx is done.
func (a *app) cleanupSessions(ctx context.Context) error {
	ticker := time.NewTicker(a.settings.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := a.sessions.CleanupExpiredSessions(a.settings.SessionTTL); removed > 0 {
				log.Info().Int("removed", removed).Msg("cleaned up expired sessions")
			}
		}
	}
}

// handler mounts the API at the root and the MCP endpoint at /mcp.
func (a *app) handler(hub *websocket.Hub, baseURL string) http.Handler {
	mcpClient := mcp.NewClient(baseURL)

	mux := http.NewServeMux()
	mux.Handle("/", api.NewServer(a.game, hub))
	mux.HandleFunc("/mcp", mcpHandler(mcpClient.GetMCPServer()))
	return mux
}

// mcpHandler answers single JSON-RPC messages posted over HTTP.
func mcpHandler(s *server.MCPServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := s.HandleMessage(r.Context(), body)
		if response == nil {
			// Notifications carry no reply
			w.WriteHeader(http.StatusAccepted)
			return
		}

		data, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

// runServer serves HTTP until the context is cancelled. The hub, the session
// sweeper, the config watcher and the optional ngrok tunnel share its lifetime.
func runServer(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	a, err := newAppServices(ctx, s)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := s.addr()
	hub := websocket.NewHub()
	handler := a.handler(hub, "http://"+addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("version", Version).Str("config_dir", s.ConfigDir).Msgf("starting %s", AppName)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return a.cleanupSessions(ctx) })
	g.Go(func() error {
		if err := a.configs.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("config watcher stopped")
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		log.Info().Msgf("REST API: http://%s/api", addr)
		log.Info().Msgf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Info().Msgf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown")
		}
		return nil
	})

	if s.Ngrok {
		g.Go(func() error {
			return serveNgrok(ctx, s, handler)
		})
	}

	err = g.Wait()
	log.Info().Msg("server stopped")
	return err
}

// serveNgrok exposes handler through an ngrok tunnel. A missing token or a
// failed tunnel is logged and leaves the local server running.
func serveNgrok(ctx context.Context, s settings, handler http.Handler) error {
	if s.NgrokAuth == "" {
		log.Warn().Msg("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return nil
	}

	var tunnel ngrokConfig.Tunnel
	if s.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(s.NgrokDomain))
		log.Info().Str("domain", s.NgrokDomain).Msg("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	log.Info().Msg("starting ngrok tunnel")
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(s.NgrokAuth))
	if err != nil {
		log.Error().Err(err).Msg("failed to start ngrok tunnel")
		return nil
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warn().Err(err).Msg("close ngrok tunnel")
		}
	}()

	url := tun.URL()
	log.Info().Str("url", url).Msg("ngrok tunnel established")
	log.Info().Msgf("REST API (ngrok): %s/api", url)
	log.Info().Msgf("WebSocket (ngrok): %s/ws?session=<session_id>", url)
	log.Info().Msgf("MCP endpoint (ngrok): %s/mcp", url)

	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("ngrok server error")
	}
	log.Info().Msg("ngrok tunnel closed")
	return nil
}

// runStdio runs an MCP stdio server. It reuses a running API at api-url or
// host:port; if none answers it serves an internal API on a loopback port.
func runStdio(ctx context.Context, cmd *cli.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	baseURL := cmd.String("api-url")
	if baseURL == "" {
		baseURL = "http://" + s.addr()
	}

	if apiAvailable(ctx, baseURL) {
		log.Info().Str("url", baseURL).Msg("external API server found, using it for MCP")
	} else {
		log.Info().Str("url", baseURL).Msg("no external API server found, starting internal one")

		a, err := newAppServices(ctx, s)
		if err != nil {
			return err
		}
		defer a.Close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("listen for internal API: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		internal := &http.Server{Handler: a.handler(nil, baseURL)}
		go func() {
			if err := internal.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("internal API server")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			internal.Shutdown(shutdownCtx)
		}()

		go a.cleanupSessions(ctx)
		log.Info().Str("url", baseURL).Msg("internal API server started")
	}

	client := mcp.NewClient(baseURL)
	log.Info().Msg("starting MCP stdio server")
	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}

// apiAvailable reports whether a merge game API answers its health check.
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
