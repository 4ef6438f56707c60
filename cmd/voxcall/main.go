// Command voxcall is a terminal client for realtime voice calls against a
// speech backend: it captures the microphone, streams audio over a
// WebSocket and prints transcriptions and model responses as they arrive.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/acoustad/voxcall/internal/capture"
	"github.com/acoustad/voxcall/internal/config"
	"github.com/acoustad/voxcall/internal/health"
	"github.com/acoustad/voxcall/internal/observe"
	"github.com/acoustad/voxcall/pkg/call"
	"github.com/acoustad/voxcall/pkg/endpoint"
	"github.com/acoustad/voxcall/pkg/wire"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	// The watcher keeps polling the file so call parameters can be
	// hot-applied; the reload handler is installed once the session exists.
	var onReload atomic.Pointer[func(old, new *config.Config)]
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		if f := onReload.Load(); f != nil {
			(*f)(old, new)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxcall: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxcall: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	settings := cfg.EndpointSettings()
	slog.Info("voxcall starting",
		"config", *configPath,
		"endpoint", settings.Endpoint,
		"deployment", settings.Deployment,
		"api_key", settings.MaskedKey(),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxcall",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Session ───────────────────────────────────────────────────────────────
	source := &capture.DeviceSource{}
	if cfg.Audio.DeviceRate > 0 {
		source.SampleRate = uint32(cfg.Audio.DeviceRate)
	}
	session := call.NewSession(liveSettings{watcher},
		call.WithCaptureSource(source),
		call.WithStats(observe.NewStats(metrics)),
		call.WithFrameSize(cfg.Audio.FrameSize),
		call.WithSampleRate(cfg.Audio.SampleRate),
	)
	defer session.Close()

	applyReload := func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			slog.SetDefault(newLogger(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.CallChanged {
			if err := session.UpdateSession(context.Background(), sessionConfig(new)); err != nil {
				slog.Warn("apply call config", "err", err)
			} else {
				slog.Info("call parameters updated")
			}
		}
		if d.RealtimeChanged {
			slog.Info("backend settings changed, effective on next connect")
		}
		if d.AudioChanged {
			slog.Info("audio settings changed, effective on next call")
		}
	}
	onReload.Store(&applyReload)

	session.SetHandlers(call.Handlers{
		OnTextDelta: func(d wire.TextDelta) {
			fmt.Print(d.Delta)
		},
		OnTranscription: func(t wire.Transcription) {
			fmt.Printf("\n[you] %s\n", t.Text)
		},
		OnControl: func(c wire.Control) {
			switch c.Action {
			case "connected":
				if c.Greeting != "" {
					fmt.Printf("\n[backend] %s\n", c.Greeting)
				}
			case "done", "response.done":
				fmt.Println()
			default:
				slog.Debug("control event", "action", c.Action, "id", c.ID)
			}
		},
		OnOpen: func() {
			slog.Info("connected", "endpoint", settings.Endpoint)
		},
		OnClose: func(code int, reason string) {
			slog.Info("connection closed", "code", code, "reason", reason)
		},
		OnError: func(err error) {
			slog.Error("call error", "err", err)
		},
		OnUnrecognized: func(raw []byte) {
			slog.Debug("unparseable frame", "len", len(raw))
		},
	})

	// Stage the session parameters before connecting; they are flushed on the
	// first successful open.
	if err := session.UpdateSession(ctx, sessionConfig(cfg)); err != nil {
		slog.Warn("stage session config", "err", err)
	}

	if err := session.StartCall(ctx); err != nil {
		slog.Error("failed to start call", "err", err)
		return 1
	}

	// ── Run loops ─────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.ListenAddr != "" {
		g.Go(func() error { return runAdminServer(gctx, cfg.Server.ListenAddr, watcher, metrics) })
	}
	g.Go(func() error { return commandLoop(gctx, session) })

	slog.Info("call running — type to chat, /help for commands, Ctrl+C to quit")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	session.EndCall()
	slog.Info("goodbye")
	return 0
}

// sessionConfig translates the call section of the config file into a wire
// session configuration.
func sessionConfig(cfg *config.Config) wire.SessionConfig {
	sampleRate := cfg.Audio.SampleRate
	if sampleRate <= 0 {
		sampleRate = call.DefaultSampleRate
	}
	sc := wire.SessionConfig{
		Instructions: cfg.Call.Instructions,
		Temperature:  cfg.Call.Temperature,
		InputAudioFormat: &wire.AudioFormat{
			Type:         "pcm16",
			SampleRateHz: sampleRate,
		},
	}
	if cfg.Call.SilenceDurationMS > 0 {
		sc.TurnDetection = &wire.TurnDetection{
			Type:              "server_vad",
			SilenceDurationMS: cfg.Call.SilenceDurationMS,
		}
	}
	return sc
}

// commandLoop reads stdin lines: slash commands control the call, anything
// else is sent as a typed user message.
func commandLoop(ctx context.Context, session *call.Session) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/help":
			fmt.Println("commands: /mute /unmute /end /start /commit /respond /status /quit")
		case "/mute":
			session.Mute()
		case "/unmute":
			session.Unmute()
		case "/end":
			session.EndCall()
		case "/start":
			if err := session.StartCall(ctx); err != nil {
				slog.Error("start call", "err", err)
			}
		case "/commit":
			if err := session.CommitAudio(ctx); err != nil {
				slog.Warn("commit audio", "err", err)
			}
		case "/respond":
			if err := session.CreateResponse(ctx, wire.ResponseOptions{}); err != nil {
				slog.Warn("create response", "err", err)
			}
		case "/status":
			conn, detail := session.ConnectionStatus()
			fmt.Printf("connection: %s %s\nmic: %s\n", conn, detail, session.MicStatus())
		case "/quit":
			return context.Canceled
		default:
			if err := session.SendText(ctx, line); err != nil {
				slog.Warn("send text", "err", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return nil
}

// liveSettings reads the watcher's current config on every call so that
// reconnects pick up edited connection parameters without a restart.
type liveSettings struct {
	w *config.Watcher
}

func (l liveSettings) Validate() []string {
	return l.w.Current().EndpointSettings().Validate()
}

func (l liveSettings) WebSocketURL() (string, error) {
	return l.w.Current().EndpointSettings().WebSocketURL()
}

// runAdminServer serves health probes and Prometheus metrics until ctx is
// cancelled.
func runAdminServer(ctx context.Context, addr string, watcher *config.Watcher, metrics *observe.Metrics) error {
	checker := health.Checker{
		Name: "backend",
		Check: func(ctx context.Context) error {
			return endpoint.Probe(ctx, watcher.Current().EndpointSettings(), 5*time.Second)
		},
	}

	mux := http.NewServeMux()
	health.New(checker).Register(mux)
	metricsHandler := promhttp.Handler()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		metricsHandler.ServeHTTP(w, r)
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: observe.Middleware(metrics)(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("admin server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("admin server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("admin server shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
