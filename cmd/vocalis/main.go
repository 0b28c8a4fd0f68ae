// Command vocalis is the main entry point for the Vocalis transcription bot.
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
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vocalis/internal/bot"
	"github.com/MrWong99/vocalis/internal/config"
	discordbot "github.com/MrWong99/vocalis/internal/discord"
	"github.com/MrWong99/vocalis/internal/observe"
	"github.com/MrWong99/vocalis/internal/session"
	"github.com/MrWong99/vocalis/internal/store"
	"github.com/MrWong99/vocalis/internal/store/postgres"
	"github.com/MrWong99/vocalis/internal/transcribe"
	oaiprovider "github.com/MrWong99/vocalis/internal/transcribe/openai"
	"github.com/MrWong99/vocalis/internal/transcribe/whisper"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vocalis: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vocalis: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("vocalis starting",
		"version", version,
		"config", *configPath,
		"provider", cfg.Transcriber.Provider.Name,
		"languages", cfg.Transcriber.Languages,
		"storage_root", cfg.Storage.Root,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
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

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Transcriber ───────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, err := reg.CreateTranscriber(cfg.Transcriber.Provider)
	if err != nil {
		slog.Error("failed to create transcriber",
			"provider", cfg.Transcriber.Provider.Name,
			"err", err,
		)
		return 1
	}
	if c, ok := provider.(interface{ Close() error }); ok {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Warn("transcriber close error", "err", err)
			}
		}()
	}

	fallback, err := transcribe.NewFallback(provider, cfg.Transcriber.Languages)
	if err != nil {
		slog.Error("failed to build language fallback", "err", err)
		return 1
	}
	slog.Info("transcriber ready",
		"provider", cfg.Transcriber.Provider.Name,
		"languages", cfg.Transcriber.Languages,
	)

	// ── Storage ───────────────────────────────────────────────────────────────
	fileStore := store.NewFileStore(cfg.Storage.Root)
	registry := session.NewRegistry(fileStore)

	var (
		archive  *postgres.Archive
		archiver bot.Archiver
		checkers []observe.Checker
	)
	if cfg.Storage.PostgresDSN != "" {
		archive, err = postgres.NewArchive(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect transcript archive", "err", err)
			return 1
		}
		defer archive.Close()
		archiver = &archiveAdapter{archive: archive}
		checkers = append(checkers, observe.Checker{Name: "archive", Check: archive.Ping})
		slog.Info("transcript archive connected")
	}

	// ── Orchestrator and Discord transport ────────────────────────────────────
	dbot, err := discordbot.New(discordbot.Config{
		Token:   cfg.Discord.Token,
		GuildID: cfg.Discord.GuildID,
	})
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}

	orchestrator, err := bot.New(bot.Config{
		Registry:    registry,
		Transcriber: fallback,
		AudioStore:  fileStore,
		Messenger:   dbot.Messenger(),
		Archive:     archiver,
		Metrics:     metrics,
	})
	if err != nil {
		slog.Error("failed to create orchestrator", "err", err)
		return 1
	}

	if err := dbot.Connect(orchestrator); err != nil {
		slog.Error("failed to connect Discord", "err", err)
		return 1
	}
	slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := dbot.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("discord bot: %w", err)
		}
		return nil
	})

	var httpServer *http.Server
	if cfg.Server.ListenAddr != "" {
		httpServer = newHTTPServer(cfg.Server.ListenAddr, checkers)
		g.Go(func() error {
			slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	slog.Info("vocalis ready — press Ctrl+C to shut down")
	<-gctx.Done()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := dbot.Close(); err != nil {
		slog.Warn("discord bot close error", "err", err)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
	}

	if err := g.Wait(); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newHTTPServer builds the metrics and health endpoint server.
func newHTTPServer(addr string, checkers []observe.Checker) *http.Server {
	health := observe.NewHealthHandler(checkers...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.Healthz)
	mux.HandleFunc("/readyz", health.Readyz)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// registerBuiltinProviders wires the transcriber factories that ship with
// Vocalis into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterTranscriber("whisper-native", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		return whisper.New(entry.Model)
	})

	// The hosted backend sits behind a circuit breaker so an outage fails
	// fast instead of stalling every voice note.
	reg.RegisterTranscriber("openai", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []oaiprovider.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaiprovider.WithBaseURL(entry.BaseURL))
		}
		p, err := oaiprovider.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return transcribe.NewBreaker(p, transcribe.BreakerConfig{Name: "openai"})
	})
}

// archiveAdapter bridges the orchestrator's archive interface onto the
// PostgreSQL archive.
type archiveAdapter struct {
	archive *postgres.Archive
}

var _ bot.Archiver = (*archiveAdapter)(nil)

func (a *archiveAdapter) Record(ctx context.Context, userID string, entry bot.ArchiveEntry) error {
	return a.archive.Record(ctx, postgres.Revision{
		UserID:          userID,
		TranscriptionID: entry.TranscriptionID,
		Version:         entry.Version,
		Folder:          entry.Folder,
		Text:            entry.Text,
	})
}

func (a *archiveAdapter) Search(ctx context.Context, userID, query string, limit int) ([]bot.ArchiveEntry, error) {
	revs, err := a.archive.Search(ctx, userID, query, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]bot.ArchiveEntry, len(revs))
	for i, rev := range revs {
		entries[i] = bot.ArchiveEntry{
			TranscriptionID: rev.TranscriptionID,
			Version:         rev.Version,
			Folder:          rev.Folder,
			Text:            rev.Text,
		}
	}
	return entries, nil
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
