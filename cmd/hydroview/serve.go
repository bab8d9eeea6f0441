package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hydroview/hydroview/pkg/config"
	"github.com/hydroview/hydroview/pkg/loader"
	"github.com/hydroview/hydroview/pkg/server"
	"github.com/hydroview/hydroview/pkg/telemetry"
	"github.com/hydroview/hydroview/pkg/watch"
)

var (
	servePort    int
	serveHost    string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long: `Start the HTTP server backing the dashboard UI.

The server provides:
  - Segmented runtime views under /api/segments, /api/summary,
    /api/daily, /api/hourly, /api/transitions
  - Energy rollups under /api/energy
  - Background exports under /api/export
  - Live reload notifications over SSE at /api/events

The export directory is watched; new CSV drops trigger a reload.

Examples:
  hydroview serve                  # Start on default port (8080)
  hydroview serve --port 3000      # Start on custom port
  hydroview serve --host 0.0.0.0   # Listen on all interfaces`,
	RunE: runServe,
}

func init() {
	cfg := config.Global().Get()

	serveCmd.Flags().IntVarP(&servePort, "port", "p", cfg.Server.Port, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", cfg.Server.Host, "Host to bind to")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Don't watch the export directory")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Global().Get()

	ctx, cancel := signalContext()
	defer cancel()

	// Optional trace export
	if cfg.Telemetry.Enabled {
		otlpCfg := telemetry.DefaultOTLPConfig("hydroview")
		otlpCfg.ServiceVersion = version
		if cfg.Telemetry.Endpoint != "" {
			otlpCfg.Endpoint = cfg.Telemetry.Endpoint
		}
		shutdown, err := telemetry.InitOTLP(otlpCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	src, err := newSource(cfg)
	if err != nil {
		return err
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to create cache backend: %w", err)
	}

	srv, err := server.NewServer(cfg, src, backend)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	if err := srv.Reload(ctx); err != nil {
		// An empty directory is a valid cold start.
		fmt.Printf("  initial load: %v\n", err)
	}

	// Watch the local export directory for new drops. S3 sources have
	// no change feed; reloads come via the API instead.
	if !serveNoWatch && cfg.S3.Bucket == "" {
		watcher, err := watch.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()

		watcher.OnChange = func(path string) error {
			return srv.Reload(ctx)
		}
		watcher.OnError = func(err error) {
			fmt.Printf("  watch: %v\n", err)
		}

		if err := watcher.Watch(dataDir, loader.SequencePattern); err != nil {
			return err
		}
		if err := watcher.Watch(dataDir, loader.StatesFile); err != nil {
			return err
		}
		go watcher.Run(ctx)
	}

	addr := fmt.Sprintf("%s:%d", serveHost, servePort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // Disable for SSE
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	url := fmt.Sprintf("http://%s:%d", serveHost, servePort)
	if serveHost == "0.0.0.0" || serveHost == "" {
		url = fmt.Sprintf("http://localhost:%d", servePort)
	}

	fmt.Println()
	fmt.Println("  ╭─────────────────────────────────────╮")
	fmt.Println("  │        HYDROVIEW SERVER             │")
	fmt.Println("  ├─────────────────────────────────────┤")
	fmt.Printf("  │  Local:   %-25s │\n", url)
	fmt.Println("  │                                     │")
	fmt.Println("  │  Press Ctrl+C to stop               │")
	fmt.Println("  ╰─────────────────────────────────────╯")
	fmt.Println()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return nil
	}
}
