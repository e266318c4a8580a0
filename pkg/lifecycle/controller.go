package lifecycle

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/smartattend/swcache/pkg/logging"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/store"
)

// Claimer takes control of connected clients.
type Claimer interface {
	Claim(version string) int
}

// Config holds controller configuration.
type Config struct {
	// Version is embedded in every store name.
	Version string

	// Prefix is the store name prefix (default: smartattend).
	Prefix string

	// Origin resolves relative manifest entries.
	Origin *url.URL

	// Manifest lists the static resources precached on install.
	Manifest []string

	// Concurrency bounds parallel manifest fetches (default: 4).
	Concurrency int
}

// Controller drives install and activation of one version.
type Controller struct {
	stores  *store.Manager
	fetcher network.Fetcher
	claimer Claimer
	config  Config
	names   Names
	logger  zerolog.Logger

	mu          sync.Mutex
	phase       Phase
	skipWaiting bool
	promoted    chan struct{}
}

// New creates a Controller. claimer may be nil when no clients are tracked.
func New(stores *store.Manager, fetcher network.Fetcher, claimer Claimer, cfg Config) *Controller {
	if stores == nil {
		panic("store manager cannot be nil")
	}
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Controller{
		stores:   stores,
		fetcher:  fetcher,
		claimer:  claimer,
		config:   cfg,
		names:    StoreNames(cfg.Prefix, cfg.Version),
		logger:   logging.NewLogger("lifecycle").With().Str("version", cfg.Version).Logger(),
		promoted: make(chan struct{}),
	}
}

// Names returns the store names of the controlled version.
func (c *Controller) Names() Names {
	return c.names
}

// Version returns the controlled version tag.
func (c *Controller) Version() string {
	return c.config.Version
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.phase = p
	currentPhase.Set(float64(p))
	c.logger.Info().Str("phase", p.String()).Msg("Lifecycle phase changed")
}

// Install precaches the manifest into the static store. Either every entry
// is stored or the static store is left absent and ErrPrecache is returned.
// A failed install may be retried.
func (c *Controller) Install(ctx context.Context) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseIdle, PhaseRedundant:
		c.setPhase(PhaseInstalling)
	default:
		p := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: install in phase %s", ErrInvalidPhase, p)
	}
	c.mu.Unlock()

	if err := c.install(ctx); err != nil {
		installTotal.WithLabelValues("failed").Inc()
		c.logger.Error().Err(err).Msg("Install failed")
		c.mu.Lock()
		c.setPhase(PhaseRedundant)
		c.mu.Unlock()
		return err
	}

	installTotal.WithLabelValues("ok").Inc()
	c.mu.Lock()
	c.setPhase(PhaseWaiting)
	c.mu.Unlock()

	c.SkipWaiting()
	return nil
}

func (c *Controller) install(ctx context.Context) error {
	urls, err := c.resolveManifest()
	if err != nil {
		return err
	}

	entries, err := c.precache(ctx, urls)
	if err != nil {
		return err
	}

	existed, err := c.stores.HasStore(ctx, c.names.Static)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPrecache, err)
	}
	static, err := c.stores.Open(ctx, c.names.Static)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPrecache, err)
	}
	for _, e := range entries {
		if err := static.Put(ctx, e.Key, e.Entry); err != nil {
			if !existed {
				if _, derr := c.stores.DeleteStore(ctx, c.names.Static); derr != nil {
					c.logger.Warn().Err(derr).Str("store", c.names.Static).Msg("Failed to remove partial static store")
				}
			}
			return precacheErr(e.URL, err)
		}
	}

	c.logger.Info().Str("store", c.names.Static).Int("entries", len(entries)).Msg("Static store populated")
	return nil
}

func (c *Controller) resolveManifest() ([]string, error) {
	urls := make([]string, 0, len(c.config.Manifest))
	for _, raw := range c.config.Manifest {
		ref, err := url.Parse(raw)
		if err != nil {
			return nil, precacheErr(raw, err)
		}
		if c.config.Origin != nil {
			ref = c.config.Origin.ResolveReference(ref)
		}
		if !ref.IsAbs() {
			return nil, precacheErr(raw, fmt.Errorf("relative manifest entry without origin"))
		}
		urls = append(urls, ref.String())
	}
	return urls, nil
}

// SkipWaiting requests promotion of the installed version without waiting
// for older versions to release their clients. It is idempotent.
func (c *Controller) SkipWaiting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.skipWaiting {
		return
	}
	c.skipWaiting = true
	close(c.promoted)
	c.logger.Debug().Msg("Skip waiting requested")
}

// Promoted is closed once skip-waiting was requested.
func (c *Controller) Promoted() <-chan struct{} {
	return c.promoted
}

// Activate deletes every store that is not one of the current version's
// stores, then claims every connected client. It returns the deleted
// store names.
func (c *Controller) Activate(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if c.phase != PhaseWaiting {
		p := c.phase
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: activate in phase %s", ErrInvalidPhase, p)
	}
	c.setPhase(PhaseActivating)
	c.mu.Unlock()

	deleted, err := c.collectGarbage(ctx)
	if err != nil {
		c.mu.Lock()
		c.setPhase(PhaseWaiting)
		c.mu.Unlock()
		return deleted, err
	}

	c.mu.Lock()
	c.setPhase(PhaseActive)
	c.mu.Unlock()

	if c.claimer != nil {
		c.claimer.Claim(c.config.Version)
	}
	return deleted, nil
}

// collectGarbage deletes stale stores. It also serves manual pruning.
func (c *Controller) collectGarbage(ctx context.Context) ([]string, error) {
	names, err := c.stores.ListStores(ctx)
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, name := range names {
		if c.names.Current(name) {
			continue
		}
		if _, err := c.stores.DeleteStore(ctx, name); err != nil {
			return deleted, err
		}
		c.logger.Info().Str("store", name).Msg("Deleted stale store")
		deleted = append(deleted, name)
	}
	return deleted, nil
}

// Prune deletes stale stores regardless of phase.
func (c *Controller) Prune(ctx context.Context) ([]string, error) {
	return c.collectGarbage(ctx)
}
