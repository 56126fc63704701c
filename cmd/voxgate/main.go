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
	"time"

	"github.com/joho/godotenv"

	"voxgate/internal/api"
	"voxgate/pkg/config"
	"voxgate/pkg/eventlog"
	"voxgate/pkg/lang"
	"voxgate/pkg/logging"
	"voxgate/pkg/pipeline"
	"voxgate/pkg/playback"
	"voxgate/pkg/queue"
	"voxgate/pkg/tracker"
	"voxgate/pkg/tts"
	"voxgate/pkg/tts/azure"
	"voxgate/pkg/tts/edgetts"
	"voxgate/pkg/tts/fishaudio"
	"voxgate/pkg/tts/sapi"
	"voxgate/pkg/users"
	"voxgate/pkg/version"
)

var (
	configPath = flag.String("config", "configs/voxgate.yaml", "Path to config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	// Secrets (provider API keys) can come from a local .env file.
	_ = godotenv.Load()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	tts.SetLog(cfg.Log.Synthesis.Path, cfg.Log.Synthesis.Enabled)
	if os.Getenv("VOXGATE_TRACE") != "" {
		logging.EnableTrace = true
	}

	slog.Info("VoxGate started", "version", version.Version)

	store, err := users.OpenSQLite(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open user store: %w", err)
	}
	defer store.Close()
	gate := users.NewGate(store, cfg.Gate.MinTeamLevel)

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	var detector lang.Detector
	if cfg.Language.AutoDetect {
		detector = lang.NewLinguaDetector()
	}
	resolver := tts.NewResolver(registry, detector, cfg.Language, cfg.TTS.DefaultProvider, cfg.TTS.DefaultVoice)

	trk := tracker.New()
	orch := tts.NewOrchestrator(registry, resolver, trk, cfg.TTS)

	events := eventlog.New(cfg.Events.BufferSize)
	limiter := queue.NewRateLimiter(cfg.Queue.RateLimitCount, time.Duration(cfg.Queue.RateLimitWindow))
	q := queue.New(cfg.Queue.MaxSize, limiter)

	sink := playback.New(cfg.Playback)
	proc := queue.NewProcessor(q, sink, trk, events, cfg.Queue, cfg.TTS.Speed)
	go proc.Run(ctx)

	p, err := pipeline.New(pipeline.Deps{
		Gate:     gate,
		Registry: registry,
		Resolver: resolver,
		Orch:     orch,
		Queue:    q,
		Proc:     proc,
		Events:   events,
		Tracker:  trk,
	}, cfg.Filter, cfg.TTS.Speed, time.Duration(cfg.Queue.DedupeTTL))
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	return runServer(ctx, cfg, p, registry, trk, events)
}

// buildRegistry registers every enabled provider and precomputes the
// fallback chains.
func buildRegistry(cfg *config.Config) (*tts.Registry, error) {
	registry := tts.NewRegistry()

	if cfg.TTS.EdgeTTS.Enabled {
		registry.Register(edgetts.NewProvider(cfg.TTS.EdgeTTS))
	}
	if cfg.TTS.AzureSpeech.Enabled {
		registry.Register(azure.NewProvider(cfg.TTS.AzureSpeech))
	}
	if cfg.TTS.FishAudio.Enabled {
		registry.Register(fishaudio.NewProvider(cfg.TTS.FishAudio))
	}
	if cfg.TTS.SAPI.Enabled {
		registry.Register(sapi.NewProvider())
	}

	if len(registry.IDs()) == 0 {
		return nil, fmt.Errorf("no TTS provider enabled in config")
	}
	if _, ok := registry.Get(cfg.TTS.DefaultProvider); !ok {
		return nil, fmt.Errorf("default provider %q is not enabled", cfg.TTS.DefaultProvider)
	}

	registry.SetChains(cfg.TTS.FallbackChains)
	slog.Info("TTS providers registered", "providers", registry.IDs())
	return registry, nil
}

func runServer(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, registry *tts.Registry, trk *tracker.Tracker, events *eventlog.Log) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewSpeakHandler(p, registry),
		api.NewUsersHandler(p),
		api.NewQueueHandler(p),
		api.NewStatsHandler(trk),
		api.NewEventsHandler(events),
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
