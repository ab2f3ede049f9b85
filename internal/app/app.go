package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"nocaflow/internal/retention"
	"nocaflow/pkg/blob"
	"nocaflow/pkg/chat"
	"nocaflow/pkg/config"
	"nocaflow/pkg/guest"
	"nocaflow/pkg/mailer"
	"nocaflow/pkg/progressor"
	"nocaflow/pkg/state"
	"nocaflow/pkg/store"
	"nocaflow/pkg/subscribe"
	"nocaflow/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	hub      *subscribe.Hub
	chat     *chat.Service
	guestSrc *guest.Source
	mail     *mailer.Mailer

	cancelRetention context.CancelFunc
	srv             *http.Server
}

// New initializes everything that does not need a running context:
// config validation, state dirs, the store, blob storage and the
// dispatcher. Call Run to start the HTTP server and block.
func New(ctx context.Context, eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	validation.SetRules(validation.Rules{
		MaxTextBytes:    int(eff.Config.Chat.MaxTextBytes.Int64()),
		MaxParticipants: eff.Config.Chat.MaxParticipants,
	})

	if err := state.EnsureStateDirs(eff.DBPath); err != nil {
		return nil, fmt.Errorf("state dirs: %w", err)
	}
	if err := store.Open(state.PathsVar.Store); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", state.PathsVar.Store, err)
	}

	if _, err := progressor.Run(ctx, version); err != nil {
		return nil, fmt.Errorf("version sync: %w", err)
	}

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate}
	a.hub = subscribe.NewHub()
	a.guestSrc = guest.NewSource(time.Now())

	var blobs chat.BlobStore
	if eff.Config.Blob.Endpoint != "" {
		bs, err := blob.Connect(ctx, eff.Config.Blob)
		if err != nil {
			return nil, fmt.Errorf("blob store: %w", err)
		}
		blobs = bs
	}
	a.chat = chat.NewService(chat.PebbleBackend{}, blobs, a.hub, eff.Config.Chat)

	if eff.Config.Mail.ProviderURL != "" {
		a.mail = mailer.New(eff.Config.Mail)
	}
	return a, nil
}

// Run starts the retention sweeper and the HTTP server, and blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	cancel, err := retention.Start(ctx, a.eff.Config.Retention)
	if err != nil {
		return err
	}
	a.cancelRetention = cancel

	errCh := a.startHTTP(ctx)
	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	}
}

func (a *App) shutdown() {
	if a.cancelRetention != nil {
		a.cancelRetention()
	}
	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(ctx)
	}
	_ = store.Close()
}
