package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/RaeedAhmed/twitch-py/internal/catalog"
	"github.com/RaeedAhmed/twitch-py/internal/config"
	"github.com/RaeedAhmed/twitch-py/internal/discovery"
	"github.com/RaeedAhmed/twitch-py/internal/enrich"
	"github.com/RaeedAhmed/twitch-py/internal/follows"
	"github.com/RaeedAhmed/twitch-py/internal/images"
	"github.com/RaeedAhmed/twitch-py/internal/store"
	"github.com/RaeedAhmed/twitch-py/pkg/helix"
	"github.com/RaeedAhmed/twitch-py/pkg/logging"
	"github.com/RaeedAhmed/twitch-py/pkg/pagination"
)

// commandContext lazily wires the application services. Commands share
// one context so the config file is read and the database opened once.
type commandContext struct {
	configFlag *string

	once    sync.Once
	initErr error

	cfg       *config.Config
	store     *store.Store
	client    *helix.Client
	pager     *pagination.Pager
	fetcher   *pagination.BatchFetcher
	mirror    *images.Mirror
	catalog   *catalog.Cache
	follows   *follows.Synchronizer
	enricher  *enrich.Enricher
	discovery *discovery.Service
	clock     clockwork.Clock
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, clock: clockwork.NewRealClock()}
}

// init loads config, opens the store, and builds the service graph. The
// Helix client authenticates with the stored account credential.
func (c *commandContext) init() error {
	c.once.Do(func() {
		cfg, st, err := c.openStore()
		if err != nil {
			c.initErr = err
			return
		}
		c.cfg = cfg
		c.store = st

		client, err := helix.New(helix.Config{
			Endpoint: cfg.API.Endpoint,
			ClientID: cfg.API.ClientID,
			Tokens:   st,
		})
		if err != nil {
			c.initErr = err
			return
		}
		c.client = client
		c.buildServices()
	})
	return c.initErr
}

// openStore loads the config, configures logging, and opens the database.
// Used directly by login, which must run without a stored credential.
func (c *commandContext) openStore() (*config.Config, *store.Store, error) {
	var path string
	if c.configFlag != nil {
		path = strings.TrimSpace(*c.configFlag)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	logging.Setup(logging.Config{Level: logging.LogLevel(cfg.Logging.Level), Pretty: cfg.Logging.Pretty})

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

func (c *commandContext) buildServices() {
	c.pager = pagination.NewPager(c.client)
	c.fetcher = pagination.NewBatchFetcher(c.client, helix.MaxBatchIDs)

	opts := []catalog.Option{}
	if c.cfg.Images.Mirror {
		c.mirror = images.NewMirror(c.cfg.ImageDir())
		opts = append(opts, catalog.WithMirror(c.mirror))
	}
	c.catalog = catalog.New(c.store, c.fetcher, opts...)

	c.follows = follows.New(c.store, c.pager, c.client, c.catalog)
	c.enricher = enrich.New(c.store, c.catalog, c.clock)
	c.discovery = discovery.New(c.store, c.client, c.pager, c.fetcher, c.catalog, c.enricher, c.clock)
}

func (c *commandContext) close() {
	if c.store != nil {
		c.store.Close()
	}
}

// run wraps a command body with service wiring and teardown.
func (c *commandContext) run(fn func(ctx context.Context) error) error {
	if err := c.init(); err != nil {
		return err
	}
	defer c.close()
	return fn(context.Background())
}

// account returns the logged-in account, with a friendly error when the
// user has not logged in yet.
func (c *commandContext) account(ctx context.Context) (*store.Account, error) {
	acct, err := c.store.Account(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("not logged in; run `twitch-py login <token>` first")
	}
	return acct, err
}

// resolveChannel maps a channel login to its cached profile, fetching and
// caching the profile on first sight.
func (c *commandContext) resolveChannel(ctx context.Context, login string) (*store.Streamer, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	st, err := c.store.StreamerByName(ctx, login)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	raw, err := c.client.Get(ctx, "users?login="+login)
	if err != nil {
		return nil, fmt.Errorf("look up channel %q: %w", login, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no such channel %q", login)
	}
	var rec struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw[0], &rec); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	id, err := strconv.ParseInt(rec.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("non-numeric user id %q: %w", rec.ID, err)
	}

	if err := c.catalog.EnsureCached(ctx, []int64{id}, catalog.KindStreamer); err != nil {
		return nil, err
	}
	return c.store.StreamerByID(ctx, id)
}
