package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	gocache "github.com/patrickmn/go-cache"

	"github.com/shouni/go-meme-kit/pkg/caption"
	"github.com/shouni/go-meme-kit/pkg/web"
)

// config は環境変数から読み込むサーバー設定です。
type config struct {
	Addr         string        `env:"MEME_KIT_ADDR" envDefault:":8080"`
	Model        string        `env:"MEME_KIT_MODEL" envDefault:"gemini-2.0-flash"`
	CacheTTL     time.Duration `env:"MEME_KIT_CACHE_TTL" envDefault:"15m"`
	FetchTimeout time.Duration `env:"MEME_KIT_FETCH_TIMEOUT" envDefault:"30s"`
	LogLevel     slog.Level    `env:"MEME_KIT_LOG_LEVEL" envDefault:"info"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("サーバーの起動に失敗しました", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// 提案結果のキャッシュ。TTL 超過分は定期的に掃除される。
	resultCache := gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL)

	httpClient := caption.NewClient(caption.RequestTimeout)
	suggester, err := caption.NewGeminiSuggester(httpClient, cfg.Model, resultCache, cfg.CacheTTL)
	if err != nil {
		return err
	}

	fetcher := caption.NewFetcher(cfg.FetchTimeout)

	srv, err := web.NewServer(suggester, fetcher)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("シグナルを受信しました。シャットダウンします")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}
