package root

import (
	"context"
	"encoding/hex"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gtank/cryptopasta"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"hit/internal/auth"
	"hit/internal/config"
	"hit/internal/content"
	"hit/internal/httpapi"
	"hit/internal/llm"
	"hit/internal/photostore"
	"hit/internal/service"
)

func newServeCmd() *cobra.Command {
	var (
		flags storeFlags
		host  string
		port  int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = strings.TrimSpace(host)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&host, "host", "", "listen host, e.g. 0.0.0.0")
	cmd.Flags().IntVar(&port, "port", 8080, "listen port")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	st, cleanup, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	log.Printf("store: engine=%s", cfg.Store.Engine)

	photos, err := photostore.New(cfg.Photos.StoreConfig())
	if err != nil {
		return errors.Wrap(err, "init photo store")
	}
	log.Printf("photos: backend=%s bucket=%s key_meta={%s}", firstNonEmpty(cfg.Photos.Backend, photostore.BackendInline), cfg.Photos.Bucket, config.SafeKeyMeta(cfg.Photos.SecretAccessKey))

	library := content.NewLibrary(content.Base)
	if path := strings.TrimSpace(cfg.Content.CatalogFile); path != "" {
		if cfg.Content.Watch {
			watcher, err := content.LoadAndWatch(path, library)
			if err != nil {
				return err
			}
			defer func() {
				if err := watcher.Close(); err != nil {
					log.Printf("catalog watcher close failed: %v", err)
				}
			}()
		} else if err := library.Load(path); err != nil {
			return err
		}
		log.Printf("content: catalog=%s watch=%t", path, cfg.Content.Watch)
	}

	svc := service.New(st, photos, library)
	if cfg.LLM.Enabled() {
		clientCfg := cfg.LLM.ClientConfig()
		client, err := llm.NewClient(clientCfg)
		if err != nil {
			return errors.Wrap(err, "init llm client")
		}
		svc.SetCollaborator(client)
		log.Printf(
			"llm: base=%s text_model=%s vision_model=%s speech_model=%s timeout=%s max_retries=%d key_meta={%s}",
			firstNonEmpty(clientCfg.BaseURL, "default"),
			firstNonEmpty(clientCfg.TextModel, "default"),
			firstNonEmpty(clientCfg.VisionModel, "default"),
			firstNonEmpty(clientCfg.SpeechModel, "default"),
			clientCfg.Timeout,
			clientCfg.Retry.MaxRetries,
			config.SafeKeyMeta(clientCfg.APIKey),
		)
	} else {
		log.Printf("llm integration disabled, prompts come from the built-in catalog")
	}

	authCfg := cfg.Auth.ServiceConfig()
	if strings.TrimSpace(authCfg.Secret) == "" {
		key := cryptopasta.NewEncryptionKey()
		authCfg.Secret = hex.EncodeToString(key[:])
		log.Printf("auth secret not configured, tokens will not survive a restart")
	}
	authSvc, err := auth.New(st, authCfg)
	if err != nil {
		return errors.Wrap(err, "init auth")
	}
	svc.SetAuth(authSvc)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           httpapi.NewRouter(httpapi.NewHandler(svc, authSvc)),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("hit backend listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
