package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/markdave123/contexta/backend/internal/config"
	"github.com/markdave123/contexta/backend/internal/handler"
	"github.com/markdave123/contexta/backend/internal/service/ai"
	"github.com/markdave123/contexta/backend/internal/service/auth"
	"github.com/markdave123/contexta/backend/internal/service/chat"
	"github.com/markdave123/contexta/backend/internal/service/export"
	"github.com/markdave123/contexta/backend/internal/service/prompt"
	"github.com/markdave123/contexta/backend/internal/service/reply"
	"github.com/markdave123/contexta/backend/internal/service/retrieval"
	"github.com/markdave123/contexta/backend/internal/service/share"
	"github.com/markdave123/contexta/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st, err := store.Open(cfg.DB.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("warning: failed to close store: %v", err)
		}
	}()

	sessions := chat.NewService(st)
	builder := prompt.NewBuilder(sessions)
	retriever := retrieval.NewService(st, cfg.Chat.RetrievalTopK)
	authSvc := auth.NewService(st, nil, cfg.Auth.OTPTTL)
	exporter := export.NewService(sessions)
	qr := share.NewService(cfg.Server.PublicBaseURL)

	// Initialize AI service
	var (
		aiSvc     *ai.Service
		completer ai.Completer
	)
	if cfg.AI.Enabled() {
		aiSvc, err = ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		} else {
			completer = ai.WithRetry(aiSvc, ai.RetryPolicy{
				MaxAttempts: cfg.AI.MaxAttempts,
				BaseDelay:   500 * time.Millisecond,
				MaxDelay:    8 * time.Second,
			})
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，跳过 AI 功能初始化")
	}
	if completer == nil {
		completer = unavailableCompleter{}
	}

	pipeline := reply.New(sessions, builder, completer, retriever, cfg.Chat.ContextBudget)

	router := handler.NewRouter(handler.Deps{
		Sessions:  sessions,
		Auth:      authSvc,
		Pipeline:  pipeline,
		Builder:   builder,
		Retriever: retriever,
		Exporter:  exporter,
		QR:        qr,
		AI:        aiSvc,
		Budget:    cfg.Chat.ContextBudget,
	})

	startServer(ctx, cfg.Server, router)
}

// unavailableCompleter stands in when no model credentials are configured.
// Questions are still recorded; answering fails as a retryable error.
type unavailableCompleter struct{}

func (unavailableCompleter) Complete(context.Context, prompt.Context) (string, error) {
	return "", fmt.Errorf("no model configured")
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Contexta backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
