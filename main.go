// Command snake-arcade starts the Snake Arcade server.
//
// It supports two modes:
//  1. "server" (default): runs the HTTP server exposing the REST API, WebSocket, the portfolio panels and an /mcp HTTP endpoint
//  2. "stdio-mcp": runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Every flag can also be set through its environment variable or a .env file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/snake-arcade/api"
	"github.com/wricardo/snake-arcade/game/config"
	"github.com/wricardo/snake-arcade/game/service"
	"github.com/wricardo/snake-arcade/game/session"
	"github.com/wricardo/snake-arcade/integrations/geo"
	"github.com/wricardo/snake-arcade/integrations/github"
	"github.com/wricardo/snake-arcade/integrations/hire"
	"github.com/wricardo/snake-arcade/integrations/seasonal"
	"github.com/wricardo/snake-arcade/integrations/weather"
	"github.com/wricardo/snake-arcade/store"
	"github.com/wricardo/snake-arcade/transport/mcp"
	"github.com/wricardo/snake-arcade/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Snake Arcade Server"
)

const (
	sessionMaxAge    = 24 * time.Hour
	cleanupInterval  = time.Hour
	syncInterval     = 5 * time.Second
	shutdownDeadline = 10 * time.Second
)

// settings holds the resolved command line and environment configuration
type settings struct {
	Port         int
	Host         string
	ConfigDir    string
	SessionsDir  string
	DBPath       string
	StaticDir    string
	GitHubUser   string
	Featured     []string
	Exclude      []string
	HireEndpoint string
	HireCooldown time.Duration
	IPSalt       string
	TrustProxy   bool
	Debug        bool
	Ngrok        bool
	NgrokAuth    string
	NgrokDomain  string
}

func (s settings) addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
		&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
		&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing game presets", Sources: cli.EnvVars("CONFIG_DIR")},
		&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "Directory for persisted sessions", Sources: cli.EnvVars("SESSIONS_DIR")},
		&cli.StringFlag{Name: "db", Value: "snake.db", Usage: "SQLite database for scores and inquiries", Sources: cli.EnvVars("DB_PATH")},
		&cli.StringFlag{Name: "static-dir", Value: "./static/", Usage: "Directory served for unmatched paths", Sources: cli.EnvVars("STATIC_DIR")},
		&cli.StringFlag{Name: "github-user", Usage: "GitHub user whose projects are listed", Sources: cli.EnvVars("GITHUB_USER")},
		&cli.StringSliceFlag{Name: "featured", Usage: "Repositories pinned above the project grid", Sources: cli.EnvVars("GITHUB_FEATURED")},
		&cli.StringSliceFlag{Name: "exclude", Usage: "Repositories hidden from the project grid", Sources: cli.EnvVars("GITHUB_EXCLUDE")},
		&cli.StringFlag{Name: "hire-endpoint", Usage: "URL receiving hire form submissions", Sources: cli.EnvVars("HIRE_ENDPOINT")},
		&cli.DurationFlag{Name: "hire-cooldown", Value: hire.DefaultCooldown, Usage: "Minimum time between inquiries from one client", Sources: cli.EnvVars("HIRE_COOLDOWN")},
		&cli.StringFlag{Name: "ip-salt", Usage: "Salt mixed into hashed client addresses", Sources: cli.EnvVars("IP_SALT")},
		&cli.BoolFlag{Name: "trust-proxy", Usage: "Read client addresses from X-Forwarded-For (implied by --ngrok)", Sources: cli.EnvVars("TRUST_PROXY")},
		&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
		&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
		&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
	}
}

func settingsFrom(cmd *cli.Command) settings {
	return settings{
		Port:         int(cmd.Int("port")),
		Host:         cmd.String("host"),
		ConfigDir:    cmd.String("config-dir"),
		SessionsDir:  cmd.String("sessions-dir"),
		DBPath:       cmd.String("db"),
		StaticDir:    cmd.String("static-dir"),
		GitHubUser:   cmd.String("github-user"),
		Featured:     cmd.StringSlice("featured"),
		Exclude:      cmd.StringSlice("exclude"),
		HireEndpoint: cmd.String("hire-endpoint"),
		HireCooldown: cmd.Duration("hire-cooldown"),
		IPSalt:       cmd.String("ip-salt"),
		TrustProxy:   cmd.Bool("trust-proxy"),
		Debug:        cmd.Bool("debug"),
		Ngrok:        cmd.Bool("ngrok"),
		NgrokAuth:    cmd.String("ngrok-auth"),
		NgrokDomain:  cmd.String("ngrok-domain"),
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "snake-arcade",
		Usage:   "Snake game server with REST, WebSocket and MCP transports",
		Version: Version,
		Flags:   flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, settingsFrom(cmd), "server")
		},
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return run(ctx, settingsFrom(cmd), "server")
				},
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return run(ctx, settingsFrom(cmd), "stdio-mcp")
				},
			},
		},
	}
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, s settings, mode string) error {
	if s.Debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	log.Printf("Starting %s v%s (mode: %s)", AppName, Version, mode)

	app, err := initializeServices(s)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sessionCleanupRoutine(ctx, app.sessions)
	go filesystemSyncRoutine(ctx, app.sessions, app.persistence)

	if mode == "stdio-mcp" {
		return runStdioMCPWithInternalServer(app)
	}
	return runHTTPServer(ctx, s, app)
}

// application bundles the long-lived collaborators built at startup
type application struct {
	store       *store.Store
	configs     *config.Manager
	persistence *session.FilePersistence
	sessions    *session.Manager
	hub         *websocket.Hub
	service     service.GameService
	portfolio   *api.Portfolio
	staticDir   string
	trustProxy  bool
}

// initializeServices opens the database, wires session/config managers, the
// websocket hub and the game service, and restores persisted sessions.
func initializeServices(s settings) (*application, error) {
	db, err := store.Open(s.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	db.SetSalt(s.IPSalt)

	configManager, err := config.NewManager(s.ConfigDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(s.SessionsDir, configManager)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence)

	hub := websocket.NewHub()
	go hub.Run()

	gameService := service.NewGameService(sessionManager, configManager,
		service.WithBroadcaster(hub),
		service.WithScoreStore(db),
	)
	hub.SetController(gameService)

	// Sessions are restored after the service subscribes to tick updates
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Printf("Warning: Failed to load persisted sessions: %v", err)
	}

	return &application{
		store:       db,
		configs:     configManager,
		persistence: persistence,
		sessions:    sessionManager,
		hub:         hub,
		service:     gameService,
		portfolio:   newPortfolio(s, db),
		staticDir:   s.StaticDir,
		trustProxy:  s.TrustProxy || s.Ngrok,
	}, nil
}

// newPortfolio wires the upstream clients behind the side panels
func newPortfolio(s settings, db *store.Store) *api.Portfolio {
	countries := geo.NewClient()
	return &api.Portfolio{
		Projects:   github.NewClient(),
		GitHubUser: s.GitHubUser,
		Featured:   s.Featured,
		Exclude:    s.Exclude,
		Weather:    weather.NewClient(),
		Theme:      seasonal.NewResolver(countries),
		Hire:       hire.NewSubmitter(s.HireEndpoint, db, s.HireCooldown),
	}
}

func (a *application) handler() *api.Server {
	return api.NewServer(a.service, a.hub,
		api.WithPortfolio(a.portfolio),
		api.WithStaticDir(a.staticDir),
		api.WithTrustedProxy(a.trustProxy),
	)
}

// Close stops the hub and every tick loop, persists sessions and closes the
// database
func (a *application) Close() {
	a.hub.Stop()
	if err := a.sessions.SaveAllSessions(); err != nil {
		log.Printf("Warning: Failed to save sessions: %v", err)
	}
	a.sessions.Close()
	if err := a.store.Close(); err != nil {
		log.Printf("Warning: Failed to close store: %v", err)
	}
}

// mcpHandler serves single JSON-RPC messages for the MCP server
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter mounts the API at the root and the MCP endpoint at /mcp
func newRouter(app *application, baseURL string) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", app.handler())
	mainRouter.HandleFunc("/mcp", mcpHandler(mcp.NewClient(baseURL)))
	return mainRouter
}

// runHTTPServer starts the HTTP server and, when enabled, an ngrok tunnel
// serving the same router. It returns after a shutdown signal.
func runHTTPServer(ctx context.Context, s settings, app *application) error {
	addr := s.addr()
	mainRouter := newRouter(app, "http://"+addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if s.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, s, mainRouter)
		}()
	}

	var runErr error
	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case runErr = <-serverErr:
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
	return runErr
}

// runNgrokTunnel serves handler through an ngrok endpoint until ctx ends
func runNgrokTunnel(ctx context.Context, s settings, handler http.Handler) {
	if s.NgrokAuth == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if s.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(s.NgrokDomain))
		log.Printf("Using custom ngrok domain: %s", s.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(s.NgrokAuth))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("🚀 Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)
	log.Printf("  Game UI (ngrok): %s/", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within sessionMaxAge
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				log.Printf("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// filesystemSyncRoutine periodically drops in-memory sessions whose files
// were deleted
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := syncWithFilesystem(manager, persistence); pruned > 0 {
				log.Printf("Filesystem sync: pruned %d orphaned sessions from memory", pruned)
			}
		}
	}
}

func syncWithFilesystem(manager *session.Manager, persistence session.SessionPersistence) int {
	if persistence == nil {
		return 0
	}

	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.Printf("Pruned session %s from memory (file deleted)", sess.ID)
		}
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server. It reuses an API
// at http://localhost:8080 when one answers, and otherwise serves this
// process's API on a random loopback port.
func runStdioMCPWithInternalServer(app *application) error {
	externalURL := "http://localhost:8080"
	baseURL := externalURL
	log.Printf("Checking for external API server at %s...", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Printf("External API server found at %s, using it for MCP", externalURL)
	} else {
		if resp != nil {
			resp.Body.Close()
		}
		log.Printf("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		internalAddr := listener.Addr().String()
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		httpServer := &http.Server{Handler: app.handler()}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + internalAddr
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Printf("MCP stdio server ready (API at %s)", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
