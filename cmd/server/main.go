package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Trios-de-tryharders/site-de-quiz/internal/config"
	"github.com/Trios-de-tryharders/site-de-quiz/internal/dispatch"
	"github.com/Trios-de-tryharders/site-de-quiz/internal/game"
	"github.com/Trios-de-tryharders/site-de-quiz/internal/httpapi"
	"github.com/Trios-de-tryharders/site-de-quiz/internal/words"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	provider, err := words.New()
	if err != nil {
		logger.Fatal("load word corpus", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := game.Settings{
		MaxRound:      cfg.MaxRound,
		RoundDuration: cfg.RoundDuration,
		ChoiceSeconds: cfg.ChoiceSeconds,
		TimeoutWindow: cfg.TimeoutWindow,
		RevealMarks:   cfg.RevealMarks,
		TypingExpiry:  cfg.TypingExpiry,
	}
	d := dispatch.New(ctx, settings, provider, logger)

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.SetupRoutes(d, logger)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
