// Command tilewalk walks dating-site profile listings and exports the
// extracted records as CSV.
//
// Usage:
//
//	tilewalk -url https://example.com/nearby -variant nearby   # one run
//	tilewalk -config tilewalk.yaml                             # run from config
//	tilewalk -config tilewalk.yaml -export-last                # re-export stored batch
//	tilewalk -config tilewalk.yaml -serve :8080                # HTTP control surface
//	tilewalk -config tilewalk.yaml -mcp                        # MCP server on stdio
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tilewalk"
)

func main() {
	configPath := flag.String("config", "", "path to tilewalk.yaml config file")
	variant := flag.String("variant", "", "listing variant: nearby or travel")
	targetURL := flag.String("url", "", "listing URL to scrape")
	exportLast := flag.Bool("export-last", false, "re-export the last stored batch and exit")
	serveAddr := flag.String("serve", "", "run the HTTP control server on this address")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools on stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *variant, *targetURL, *exportLast, *serveAddr, *mcpMode); err != nil {
		logger.Error("tilewalk: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, variant, targetURL string, exportLast bool, serveAddr string, mcpMode bool) error {
	cfg := tilewalk.DefaultConfig()
	if configPath != "" {
		loaded, err := tilewalk.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if variant != "" {
		cfg.Target.Variant = variant
	}
	if targetURL != "" {
		cfg.Target.URL = targetURL
	}

	sinks := tilewalk.SinksFromConfig(cfg.Sinks, os.Stdout, logger)
	runner := tilewalk.New(cfg, logger, sinks...)
	defer runner.Close()

	if err := runner.OpenStore(); err != nil {
		return err
	}

	switch {
	case exportLast:
		path, err := runner.ExportLast(ctx, cfg.Target.Variant)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil

	case serveAddr != "":
		return serveHTTP(ctx, logger, runner, serveAddr)

	case mcpMode:
		return serveMCP(ctx, runner)

	default:
		if cfg.Target.URL == "" {
			fmt.Fprintln(os.Stderr, "usage: tilewalk -url <url> [-variant nearby|travel] | -config <file> [-serve <addr> | -mcp | -export-last]")
			os.Exit(1)
		}
		path, err := runner.Run(ctx, cfg.Target.Variant, cfg.Target.URL)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	}
}

func serveHTTP(ctx context.Context, logger *slog.Logger, runner *tilewalk.Runner, addr string) error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	runner.RegisterHTTP(r)

	srv := &http.Server{Addr: addr, Handler: r}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("tilewalk: http server listening", "addr", addr)

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errc:
		return err
	}
}

func serveMCP(ctx context.Context, runner *tilewalk.Runner) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "tilewalk", Version: "1.0.0"}, nil)
	runner.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}
