package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	sessionrender "github.com/bnema/pathfinder/internal/adapters/render/session"
	"github.com/bnema/pathfinder/internal/adapters/remote/supabase"
	tomlrepo "github.com/bnema/pathfinder/internal/adapters/repo/toml"
	chainslots "github.com/bnema/pathfinder/internal/adapters/slots/chain"
	fileslots "github.com/bnema/pathfinder/internal/adapters/slots/file"
	"github.com/bnema/pathfinder/internal/application"
	"github.com/bnema/pathfinder/internal/config"
	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const remoteRequestTimeout = 30 * time.Second

type app struct {
	cfg             config.Config
	core            *application.Core
	logger          *slog.Logger
	renderSession   func(sessionrender.SessionView) (string, error)
	renderPage      func(sessionrender.PageView) (string, error)
	renderMigration func(domain.MigrationReport) (string, error)
	now             func() time.Time

	// prompt receives the OAuth authorize URL.
	prompt  io.Writer
	started bool
}

func wireApp() (*app, error) {
	v := viper.New()
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	slots, err := wireSlotStore(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:             cfg,
		logger:          logger,
		renderSession:   sessionrender.RenderSession,
		renderPage:      sessionrender.RenderPage,
		renderMigration: sessionrender.RenderMigration,
		now:             time.Now,
		prompt:          os.Stderr,
	}

	auth, data, err := a.wireBackend(v, slots)
	if err != nil {
		return nil, err
	}

	a.core = application.NewCore(auth, data, slots, ports.SystemClock{}, logger, cfg.CoreOptions())
	return a, nil
}

func wireSlotStore(cfg config.Config) (ports.SlotStore, error) {
	if !cfg.Slots.PreferPass {
		return fileslots.NewStore(cfg.Slots.Root), nil
	}

	store, err := chainslots.NewPassFirstWithFileFallback(cfg.Slots.PassPrefix, cfg.Slots.Root)
	if err != nil {
		return nil, fmt.Errorf("wire slot store chain: %w", err)
	}
	return store, nil
}

func (a *app) wireBackend(v *viper.Viper, slots ports.SlotStore) (ports.AuthProvider, ports.DataService, error) {
	switch a.cfg.Backend {
	case config.BackendSupabase:
		client, err := supabase.New(supabase.Config{
			URL:        a.cfg.Remote.URL,
			AnonKey:    a.cfg.Remote.AnonKey,
			HTTPClient: &http.Client{Timeout: remoteRequestTimeout},
			Slots:      slots,
			Logger:     a.logger.With("component", "supabase"),
			OAuth: supabase.OAuthConfig{
				ListenAddr: a.cfg.OAuth.ListenAddr,
				Timeout:    a.cfg.OAuth.Timeout,
				OpenURL:    a.openURL,
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire supabase client: %w", err)
		}
		return client, client, nil
	default:
		backend, err := tomlrepo.NewBackend(v, ports.SystemClock{}, a.logger.With("component", "local"))
		if err != nil {
			return nil, nil, fmt.Errorf("wire local backend: %w", err)
		}
		return backend, backend, nil
	}
}

func (a *app) openURL(authURL string) error {
	_, err := fmt.Fprintf(a.prompt, "Open this URL to sign in:\n%s\n", authURL)
	return err
}

// start resolves the session once per process behind a spinner.
func (a *app) start(cmd *cobra.Command) (domain.Session, error) {
	if a.started {
		return a.core.Session(), nil
	}

	session, err := runSpinner(cmd.Context(), cmd.ErrOrStderr(), "Resolving session...", func(ctx context.Context) (domain.Session, error) {
		return a.core.Start(ctx), nil
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("resolve session: %w", err)
	}
	a.started = true
	return session, nil
}

// watch runs the core's background loops while a long command waits on the
// user. The returned func stops them and waits for them to return.
func (a *app) watch(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.core.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("session watch stopped", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (a *app) close() {
	a.core.Close()
}
