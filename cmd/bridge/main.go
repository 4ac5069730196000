package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/wv_bridge/internal/api"
	"github.com/dgnsrekt/wv_bridge/internal/bridge"
	"github.com/dgnsrekt/wv_bridge/internal/browser"
	"github.com/dgnsrekt/wv_bridge/internal/config"
	"github.com/dgnsrekt/wv_bridge/internal/delegate"
	"github.com/dgnsrekt/wv_bridge/internal/engine"
	"github.com/dgnsrekt/wv_bridge/internal/frame"
	"github.com/dgnsrekt/wv_bridge/internal/ioclient"
	"github.com/dgnsrekt/wv_bridge/internal/netutil"
	"github.com/dgnsrekt/wv_bridge/internal/notify"
	"github.com/dgnsrekt/wv_bridge/internal/policy"
	"github.com/dgnsrekt/wv_bridge/internal/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("wv_bridge config loaded",
		"cdp_url", cfg.GetCDPURL(),
		"bind_addr", cfg.BindAddr,
		"tab_url_filter", cfg.TabURLFilter,
		"cache_mode", cfg.CacheMode,
		"blocklist_entries", len(cfg.Blocklist),
		"intercept_dir", cfg.InterceptDir,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	cacheMode, err := delegate.ParseCacheMode(cfg.CacheMode)
	if err != nil {
		slog.Error("invalid cache mode", "value", cfg.CacheMode, "error", err)
		os.Exit(1)
	}

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			ProfileDir: cfg.ProfileDir,
			Binary:     cfg.BrowserBinary,
		})
		if err := launcher.Launch(context.Background()); err != nil {
			fatalStartup(cfg, "browser launch failed: "+err.Error())
		}
		defer launcher.Stop()
	}

	rules := policy.New(policy.Options{
		CacheMode:               cacheMode,
		BlockContentURLs:        cfg.BlockContentURLs,
		BlockFileURLs:           cfg.BlockFileURLs,
		BlockNetworkLoads:       cfg.BlockNetworkLoads,
		AcceptThirdPartyCookies: cfg.AcceptThirdPartyCookies,
		Blocklist:               cfg.Blocklist,
		InterceptDir:            cfg.InterceptDir,
	})

	// Bindings must stay strongly referenced for as long as their pages
	// live; the registry only holds weak refs.
	var bindingsMu sync.Mutex
	bindings := make(map[frame.Page]*delegate.Binding)

	dropBinding := func(p frame.Page) {
		bindingsMu.Lock()
		delete(bindings, p)
		bindingsMu.Unlock()
	}

	broker := bridge.NewBroker()
	eng := engine.New(cfg.GetCDPURL(), cfg.TabURLFilter, func(p frame.Page) {
		ioclient.RegisterPendingPage(p)
		b := delegate.NewBinding(rules)
		bindingsMu.Lock()
		bindings[p] = b
		bindingsMu.Unlock()
		ioclient.Associate(p, b)
		p.AddObserver(&bindingJanitor{page: p, drop: dropBinding})
		slog.Info("page delegate attached", "cache_mode", b.Delegate().CacheMode().String())
	}, broker)

	if err := eng.Connect(context.Background()); err != nil {
		fatalStartup(cfg, "CDP connect failed: "+err.Error())
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Debug("engine close failed", "error", err)
		}
	}()

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, nil, false)
	if err != nil {
		fatalStartup(cfg, "bind address unavailable: "+err.Error())
	}

	svc := bridge.NewService(registry.Shared(), eng)
	h := api.NewServer(svc, broker)

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("wv_bridge listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("wv_bridge server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("wv_bridge shutdown failed", "error", err)
	}
}

// bindingJanitor releases a page's delegate binding once the page is gone,
// letting the weak registry entry expire.
type bindingJanitor struct {
	page frame.Page
	drop func(frame.Page)
}

func (j *bindingJanitor) FrameCreated(frame.Frame) {}
func (j *bindingJanitor) FrameDeleted(frame.Frame) {}

func (j *bindingJanitor) PageDestroyed() {
	j.drop(j.page)
	j.page.RemoveObserver(j)
}

// fatalStartup logs the failure, pushes a notification when an endpoint is
// configured, and exits.
func fatalStartup(cfg *config.Config, msg string) {
	slog.Error("startup failed", "reason", msg)
	if cfg.NotifyEndpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := notify.Send(ctx, nil, cfg.NotifyEndpoint, "wv_bridge startup failed: "+msg); err != nil {
			slog.Debug("startup notification failed", "error", err)
		}
	}
	os.Exit(1)
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
