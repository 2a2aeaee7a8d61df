// Command kiosk-shell runs the kiosk host process.
//
// It supports two modes:
//  1. "server" (default) – launches the browser and runs the HTTP server exposing the REST API, the event WebSocket, metrics, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server against an already running kiosk server
//
// Configuration comes from KIOSK_* environment variables (optionally loaded
// from a .env file); flags override individual values.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/kiosk-shell/api"
	"github.com/wricardo/kiosk-shell/config"
	"github.com/wricardo/kiosk-shell/logging"
	"github.com/wricardo/kiosk-shell/transport/mcp"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Kiosk Shell"
)

// Flags override the matching KIOSK_* environment variables when set.
var (
	port         = flag.Int("port", 8080, "HTTP server port")
	host         = flag.String("host", "localhost", "HTTP server host")
	catalogPath  = flag.String("catalog", "configs/pages.yaml", "Page catalog file")
	recordPath   = flag.String("record", "data/kiosk.json", "Kiosk record file")
	staticDir    = flag.String("static", "", "Directory served at / (optional)")
	headless     = flag.Bool("headless", false, "Run the browser without a window")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	version      = flag.Bool("version", false, "Show version information")
	apiURL       = flag.String("api", "http://localhost:8080", "Kiosk server URL used by stdio-mcp")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Launch the kiosk and serve the API (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run an MCP stdio server against a running kiosk\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                         # Run the kiosk on port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -catalog lobby.yaml     # Use another page catalog\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s mcp -api http://k1:8080 # Drive a remote kiosk over MCP stdio\n", os.Args[0])
	}
}

// main parses flags, wires the kiosk and starts the selected mode.
func main() {
	envErr := godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)

	logger, err := logging.New(logConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// A missing .env file is the normal case
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn("failed to load .env file", zap.Error(envErr))
	}

	args := flag.Args()
	mode := "server"
	if len(args) > 0 {
		mode = args[0]
	}

	logger.Info("starting", zap.String("app", AppName), zap.String("version", Version), zap.String("mode", mode))

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		if err := server.ServeStdio(mcp.NewClient(*apiURL).GetMCPServer()); err != nil {
			logger.Fatal("MCP stdio server error", zap.Error(err))
		}

	case "server", "http":
		a, err := buildApp(cfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize kiosk", zap.Error(err))
		}
		runHTTPServer(a)

	default:
		logger.Fatal("unknown mode, use 'server' (default) or 'stdio-mcp'", zap.String("mode", mode))
	}
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "host":
			cfg.Server.Host = *host
		case "catalog":
			cfg.Kiosk.CatalogPath = *catalogPath
		case "record":
			cfg.Kiosk.RecordPath = *recordPath
		case "headless":
			cfg.Browser.Headless = *headless
		case "debug":
			if *debug {
				cfg.Logging.Level = "debug"
				cfg.Logging.Development = true
			}
		case "ngrok":
			cfg.Ngrok.Enabled = *ngrokEnabled
		case "ngrok-auth":
			cfg.Ngrok.AuthToken = *ngrokAuth
		case "ngrok-domain":
			cfg.Ngrok.Domain = *ngrokDomain
		}
	})
}

func logConfig(cfg *config.Config) logging.Config {
	lc := logging.DefaultConfig()
	if cfg.Logging.Development {
		lc = logging.DevelopmentConfig()
	}
	lc.Level = cfg.Logging.Level
	return lc
}

// mcpHandler serves single JSON-RPC messages against the MCP tool set.
func mcpHandler(client *mcp.Client) http.HandlerFunc {
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

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter combines the REST API with the /mcp endpoint.
func newRouter(a *app) http.Handler {
	apiServer := api.NewServer(a.svc, a.hub, api.Options{
		Metrics:   a.metrics,
		Logger:    a.log,
		RateLimit: a.cfg.RateLimit,
		StaticDir: *staticDir,
	})

	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", a.cfg.Server.Addr()))

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))
	return mainRouter
}

// runHTTPServer serves the kiosk until a signal or a quit request arrives,
// then tears every view down and closes the browser.
func runHTTPServer(a *app) {
	log := a.log
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.start(ctx)

	addr := a.cfg.Server.Addr()
	handler := newRouter(a)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
		// show requests wait for the first page load
		ReadTimeout:  15 * time.Second,
		WriteTimeout: a.cfg.Kiosk.LoadTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("events", fmt.Sprintf("ws://%s/ws", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	if a.cfg.Ngrok.Enabled || os.Getenv("NGROK_ENABLED") == "true" || os.Getenv("NGROK_ENABLED") == "1" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, a.cfg.Ngrok, handler, log)
		}()
	}

	select {
	case sig := <-stop:
		log.Info("received signal, shutting down", zap.Stringer("signal", sig))
		quitCtx, quitCancel := context.WithTimeout(context.Background(), a.cfg.Kiosk.TeardownTimeout+5*time.Second)
		if err := a.svc.Quit(quitCtx); err != nil {
			log.Warn("quit failed", zap.Error(err))
		}
		quitCancel()
	case <-a.quit:
		log.Info("quit requested, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}

	wg.Wait()
	if err := a.close(); err != nil {
		log.Warn("browser shutdown error", zap.Error(err))
	}
	log.Info("server stopped")
}

// runNgrok exposes handler through an ngrok tunnel until ctx is cancelled.
func runNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler, log *zap.Logger) {
	authToken := cfg.AuthToken
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
	}
	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, KIOSK_NGROK_AUTH_TOKEN or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Warn("failed to start ngrok tunnel", zap.Error(err))
		return
	}
	defer tun.Close()

	log.Info("ngrok tunnel established", zap.String("url", tun.URL()))

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("ngrok server error", zap.Error(err))
	}
	log.Info("ngrok tunnel closed")
}
