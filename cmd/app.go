package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finledger/internal/allocation"
	"finledger/internal/config"
	"finledger/internal/extract"
	"finledger/internal/reconcile"
	"finledger/internal/store"
	"finledger/internal/textsource"
	"finledger/internal/vault"
	"github.com/rs/zerolog"
)

// app holds the services built from configuration for one command run.
type app struct {
	cfg     *config.Config
	service *reconcile.Service
	source  textsource.Source
	closers []io.Closer
}

// newApp wires the store, vault and text source selected by configuration.
// Text extraction is only set up when withSource is true, so ledger-only
// commands do not need cloud credentials.
func newApp(ctx context.Context, withSource bool, log zerolog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	repo, err := newRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	v, err := a.newVault(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if withSource {
		if a.source, err = a.newTextSource(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	engine := allocation.NewEngine(allocation.Policy{
		CapAtDue:       cfg.AllocationCapAtDue,
		OverAllocation: allocation.OverAllocationPolicy(cfg.InvoiceOverAllocation),
	})
	a.service = reconcile.NewService(repo, v, engine)

	log.Debug().
		Str("store", cfg.LedgerStore).
		Str("vault", cfg.VaultBackend).
		Str("text_source", cfg.TextSource).
		Bool("cap_at_due", cfg.AllocationCapAtDue).
		Str("over_allocation", cfg.InvoiceOverAllocation).
		Msg("Services initialized")
	return a, nil
}

func newRepository(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	switch cfg.LedgerStore {
	case config.StoreSheets:
		repo, err := store.NewSheetsRepository(ctx, cfg.GoogleSheetURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open Google Sheet: %w", err)
		}
		return repo, nil
	default:
		return store.NewExcelRepository(cfg.LedgerFile), nil
	}
}

func (a *app) newVault(ctx context.Context) (vault.Vault, error) {
	switch a.cfg.VaultBackend {
	case config.VaultGCS:
		v, err := vault.NewGCSVault(ctx, a.cfg.GCSVaultBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to open document vault: %w", err)
		}
		a.closers = append(a.closers, v)
		return v, nil
	default:
		return vault.NewLocalVault(a.cfg.VaultDir), nil
	}
}

func (a *app) newTextSource(ctx context.Context) (textsource.Source, error) {
	var (
		src textsource.Source
		err error
	)
	switch a.cfg.TextSource {
	case config.TextDocumentAI:
		src, err = textsource.NewDocumentAISource(ctx, textsource.DocumentAIConfig{
			ProjectID:        a.cfg.GoogleCloudProject,
			Location:         a.cfg.GoogleCloudLocation,
			ProcessorID:      a.cfg.DocumentAIProcessorID,
			ProcessorVersion: a.cfg.DocumentAIProcessorVersion,
		})
	case config.TextVision:
		src, err = textsource.NewVisionSource(ctx)
	default:
		src = textsource.NewPlainSource()
	}
	if err != nil {
		return nil, err
	}
	if c, ok := src.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	return src, nil
}

// completer returns the OpenAI completer, or nil when no API key is configured.
func (a *app) completer() *extract.Completer {
	if !a.cfg.CompletionEnabled() {
		return nil
	}
	return extract.NewCompleter(a.cfg.OpenAIAPIKey, a.cfg.OpenAIModel)
}

// Close releases cloud clients.
func (a *app) Close() {
	for _, c := range a.closers {
		c.Close()
	}
	a.closers = nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
