// Command conduit runs the agent daemon: it loads a character file, builds
// the configured plugins, wires them to a dispatcher, starts plugin
// services (the XMTP listener among them), and serves health endpoints
// until signaled to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/wilhg/conduit/pkg/agent"
	"github.com/wilhg/conduit/pkg/cache"
	"github.com/wilhg/conduit/pkg/character"
	"github.com/wilhg/conduit/pkg/genai"
	_ "github.com/wilhg/conduit/pkg/genai/gemini"
	_ "github.com/wilhg/conduit/pkg/genai/openai"
	"github.com/wilhg/conduit/pkg/mcpbridge"
	"github.com/wilhg/conduit/pkg/otel"
	"github.com/wilhg/conduit/pkg/plugins/avalanche"
	"github.com/wilhg/conduit/pkg/plugins/birdeye"
	"github.com/wilhg/conduit/pkg/plugins/goat"
	solanaplugin "github.com/wilhg/conduit/pkg/plugins/solana"
	"github.com/wilhg/conduit/pkg/plugins/xmtp"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	var (
		showVersion bool
		addr        string
		configPath  string
		logLevel    string
		traceStdout bool
		mcpStdio    bool
	)
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.StringVar(&addr, "addr", getEnv("CONDUIT_ADDR", ":8080"), "http listen address")
	flag.StringVar(&configPath, "config", getEnv("CONDUIT_CHARACTER", "character.yaml"), "character file path")
	flag.StringVar(&logLevel, "log-level", getEnv("CONDUIT_LOG_LEVEL", "info"), "log level (debug|info|warn|error)")
	flag.BoolVar(&traceStdout, "trace-stdout", false, "export traces to stdout")
	flag.BoolVar(&mcpStdio, "mcp", false, "serve plugin actions over MCP stdio instead of running the daemon")
	flag.Parse()

	if showVersion {
		fmt.Printf("conduit %s (commit=%s, date=%s)\n", version, commit, date)
		return
	}

	log := setupLogger(logLevel)
	if mcpStdio {
		if err := runMCP(context.Background(), configPath, log); err != nil {
			log.Error("mcp server failed", "err", err)
			os.Exit(1)
		}
		return
	}
	if err := run(context.Background(), addr, configPath, traceStdout, log); err != nil {
		log.Error("daemon failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, configPath string, traceStdout bool, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, otel.Config{ServiceVersion: version, UseStdout: traceStdout})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTracing(sctx)
	}()

	char, err := character.Load(configPath)
	if err != nil {
		return err
	}
	log.Info("character loaded", "agent", char.Name, "plugins", char.Plugins)

	store, closeCache, err := openCache(char.Settings.Lookup, log)
	if err != nil {
		return err
	}
	defer closeCache()

	gen, err := buildGenerator(ctx, char.Settings.Lookup, log)
	if err != nil {
		return err
	}
	rt := &hostRuntime{char: char, store: store, gen: gen}

	plugins, xmtpSvc, err := buildPlugins(ctx, char, log)
	if err != nil {
		return err
	}
	for _, p := range plugins {
		if err := agent.RegisterPlugin(p); err != nil {
			return err
		}
	}
	dispatcher := agent.NewDispatcher(plugins)
	if xmtpSvc != nil {
		xmtpSvc.Bind(dispatcher)
	}

	var ready atomic.Bool
	var started []agent.Service
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Stop(sctx); err != nil {
				log.Warn("service stop failed", "service", started[i].Name(), "err", err)
			}
		}
	}()
	for _, p := range plugins {
		for _, svc := range p.Services {
			if err := svc.Start(ctx, rt); err != nil {
				return fmt.Errorf("starting %s: %w", svc.Name(), err)
			}
			log.Info("service started", "service", svc.Name())
			started = append(started, svc)
		}
	}
	ready.Store(true)

	server := &http.Server{Addr: addr, Handler: buildMux(ready.Load)}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(sctx)
}

// runMCP builds the character's plugins and serves their actions as MCP
// tools over stdio, for MCP hosts driving the agent directly.
func runMCP(ctx context.Context, configPath string, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	char, err := character.Load(configPath)
	if err != nil {
		return err
	}
	store, closeCache, err := openCache(char.Settings.Lookup, log)
	if err != nil {
		return err
	}
	defer closeCache()
	gen, err := buildGenerator(ctx, char.Settings.Lookup, log)
	if err != nil {
		return err
	}
	plugins, _, err := buildPlugins(ctx, char, log)
	if err != nil {
		return err
	}

	bridge, err := mcpbridge.New(mcpbridge.Options{
		Runtime: &hostRuntime{char: char, store: store, gen: gen},
		Plugins: plugins,
		Name:    "conduit",
		Version: version,
		Logger:  log,
	})
	if err != nil {
		return err
	}
	return bridge.Run(ctx)
}

// hostRuntime is the daemon's agent.Runtime: character-backed settings with
// environment override, the shared cache, and the configured generator.
type hostRuntime struct {
	char  *character.Character
	store cache.Cache
	gen   genai.Generator
}

func (r *hostRuntime) AgentName() string         { return r.char.Name }
func (r *hostRuntime) Setting(key string) string { return r.char.Settings.Lookup(key) }
func (r *hostRuntime) Cache() cache.Cache        { return r.store }
func (r *hostRuntime) Generator() genai.Generator {
	return r.gen
}

// openCache builds the tiered runtime cache: a memory hot tier, and a
// badger file tier when CONDUIT_DATA_DIR is set.
func openCache(lookup func(string) string, log *slog.Logger) (cache.Cache, func(), error) {
	hot := cache.NewMemory(0)
	dataDir := lookup("CONDUIT_DATA_DIR")
	if dataDir == "" {
		return hot, func() { hot.Close() }, nil
	}
	// Badger output routes through slog.Default, which setupLogger installed.
	file, err := cache.NewFile(cache.FileOptions{Dir: filepath.Join(dataDir, "cache")})
	if err != nil {
		hot.Close()
		return nil, nil, err
	}
	tiered := cache.NewTiered(hot, file, &cache.TieredOptions{
		OnError: func(op, key string, err error) {
			log.Warn("cache tier degraded", "op", op, "key", key, "err", err)
		},
	})
	closeAll := func() {
		hot.Close()
		if err := file.Close(); err != nil {
			log.Warn("closing file cache", "err", err)
		}
	}
	return tiered, closeAll, nil
}

// buildGenerator constructs the model backend named by MODEL_PROVIDER.
// No provider configured means no generation: actions that need extraction
// fall back to pre-extracted parameters and the XMTP service to its static
// reply.
func buildGenerator(ctx context.Context, lookup func(string) string, log *slog.Logger) (genai.Generator, error) {
	provider := lookup("MODEL_PROVIDER")
	if provider == "" {
		log.Warn("MODEL_PROVIDER unset, generation disabled")
		return nil, nil
	}
	cfg := map[string]any{}
	if v := lookup("MODEL_API_KEY"); v != "" {
		cfg["api_key"] = v
	}
	if v := lookup("MODEL_NAME"); v != "" {
		cfg["model"] = v
	}
	return genai.New(ctx, provider, cfg)
}

// buildPlugins constructs the character's plugin list in order. The XMTP
// service is returned separately so the dispatcher can be bound after
// construction.
func buildPlugins(ctx context.Context, char *character.Character, log *slog.Logger) ([]*agent.Plugin, *xmtp.Service, error) {
	lookup := char.Settings.Lookup
	var plugins []*agent.Plugin
	var xmtpSvc *xmtp.Service
	for _, name := range char.Plugins {
		var (
			p   *agent.Plugin
			err error
		)
		switch name {
		case "birdeye":
			cfg := birdeye.FromSettings(lookup)
			cfg.Logger = log
			p, err = birdeye.New(cfg)
		case "solana":
			p, err = solanaplugin.New(solanaplugin.Config{
				RPCURL:     lookup("SOLANA_RPC_URL"),
				PrivateKey: lookup("SOLANA_PRIVATE_KEY"),
				Logger:     log,
			})
		case "goat":
			cfg := goat.FromSettings(lookup)
			cfg.Logger = log
			p, err = goat.New(cfg)
		case "avalanche":
			p, err = avalanche.New(ctx, avalanche.Config{
				Swapper: avalanche.SwapperConfig{
					RPCURL:        lookup("AVALANCHE_RPC_URL"),
					PrivateKeyHex: lookup("EVM_PRIVATE_KEY"),
					Logger:        log,
				},
			})
		case "xmtp":
			cfg := xmtp.FromSettings(lookup)
			if cfg.StaticReply == "" {
				cfg.StaticReply = char.StaticReply
			}
			cfg.Logger = log
			p, xmtpSvc, err = xmtp.New(cfg)
		default:
			return nil, nil, fmt.Errorf("character names unknown plugin %q", name)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("building plugin %s: %w", name, err)
		}
		plugins = append(plugins, p)
	}
	return plugins, xmtpSvc, nil
}

// buildMux serves liveness and readiness. Readiness flips true once all
// services are started.
func buildMux(ready func() bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("starting"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	return mux
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(log)
	return log
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
