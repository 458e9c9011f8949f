package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/moveis-planejados/lead-api/internal/cache"
	"github.com/moveis-planejados/lead-api/internal/config"
	"github.com/moveis-planejados/lead-api/internal/directory"
	"github.com/moveis-planejados/lead-api/internal/journal"
	"github.com/moveis-planejados/lead-api/internal/lead"
	"github.com/moveis-planejados/lead-api/internal/metrics"
	"github.com/moveis-planejados/lead-api/internal/resilience"
	"github.com/moveis-planejados/lead-api/pkg/ipgeo"
	"github.com/moveis-planejados/lead-api/pkg/pipefy"
	"github.com/moveis-planejados/lead-api/pkg/wordpress"
)

// serviceEnv holds the collaborators the serve command wires into the router.
type serviceEnv struct {
	Cache     cache.Cache
	Directory directory.Directory // may be nil
	Journal   journal.Journal     // may be nil
	IPGeo     ipgeo.Client        // may be nil
	Metrics   *metrics.Metrics
	Breakers  *resilience.Breakers
	Leads     *lead.Service
}

// Close releases resources held by the environment.
func (e *serviceEnv) Close() {
	if e.Journal != nil {
		_ = e.Journal.Close()
	}
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
}

// initService builds the cache, directory, outbound clients, breakers and
// lead service from c. Callers should defer env.Close().
func initService(ctx context.Context, c *config.Config) (*serviceEnv, error) {
	env := &serviceEnv{
		Metrics: metrics.New(prometheus.NewRegistry()),
	}

	store, err := initCache(ctx, c)
	if err != nil {
		return nil, err
	}
	env.Cache = store

	var cms wordpress.Client
	if c.WordPress.BaseURL != "" {
		cms = wordpress.NewClient(c.WordPress.BaseURL, wordpress.WithToken(c.WordPress.Token))
	} else {
		zap.L().Warn("LEADAPI_WORDPRESS_BASE_URL not set, leads will not reach the CMS")
	}

	dir, err := initDirectory(c, cms)
	if err != nil {
		env.Close()
		return nil, err
	}
	if dir != nil {
		dir = directory.NewCached(dir, store, c.Directory.CacheTTL)
	}
	env.Directory = dir

	var crm pipefy.Client
	if c.Pipefy.Token != "" {
		crm = pipefy.NewClient(c.Pipefy.Token,
			pipefy.WithEndpoint(c.Pipefy.BaseURL),
			pipefy.WithRateLimit(c.Pipefy.RateLimit),
		)
		zap.L().Info("pipefy delivery enabled", zap.String("pipe_id", c.Pipefy.PipeID))
	} else {
		zap.L().Warn("LEADAPI_PIPEFY_TOKEN not set, leads will not reach the CRM")
	}

	if c.IPGeo.Enabled {
		env.IPGeo = ipgeo.NewClient(ipgeo.WithBaseURL(c.IPGeo.BaseURL))
	}

	env.Breakers = initBreakers(c, env.Metrics)

	opts := []lead.Option{
		lead.WithMetrics(env.Metrics),
		lead.WithBreakers(env.Breakers),
	}
	if c.Journal.Enabled {
		j, err := openJournal(ctx, c)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Journal = j
		opts = append(opts, lead.WithJournal(j))
	}

	var writer lead.LeadWriter
	if cms != nil {
		writer = cms
	}
	env.Leads = lead.New(lead.Config{
		PipeID:          c.Pipefy.PipeID,
		UpstreamTimeout: c.Lead.UpstreamTimeout,
	}, dir, crm, writer, opts...)

	return env, nil
}

// initCache returns Redis when a URL is configured, otherwise an in-process cache.
func initCache(ctx context.Context, c *config.Config) (cache.Cache, error) {
	if c.Cache.RedisURL == "" {
		zap.L().Debug("using in-memory cache")
		return cache.NewMemory(), nil
	}
	r, err := cache.NewRedis(ctx, c.Cache.RedisURL)
	if err != nil {
		return nil, eris.Wrap(err, "init cache")
	}
	zap.L().Info("using redis cache")
	return r, nil
}

// initDirectory prefers the CMS store endpoint and falls back to the seed
// file. It returns nil when neither is configured.
func initDirectory(c *config.Config, cms wordpress.Client) (directory.Directory, error) {
	switch {
	case cms != nil:
		return directory.NewRemote(cms), nil
	case c.Directory.SeedFile != "":
		f, err := directory.LoadFile(c.Directory.SeedFile)
		if err != nil {
			return nil, eris.Wrap(err, "init directory")
		}
		zap.L().Info("store directory loaded from seed file", zap.String("path", c.Directory.SeedFile))
		return f, nil
	default:
		zap.L().Warn("no store directory configured, store ids will not be validated")
		return nil, nil
	}
}

// initBreakers builds the per-upstream breakers and reports their transitions.
func initBreakers(c *config.Config, m *metrics.Metrics) *resilience.Breakers {
	bc := resilience.BreakerConfigFrom(c.Breaker.FailureThreshold, c.Breaker.ResetTimeoutSecs)
	bc.OnStateChange = func(upstream string, from, to resilience.State) {
		zap.L().Warn("circuit breaker state change",
			zap.String("upstream", upstream),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		m.BreakerState(upstream, breakerGauge(to))
	}
	return resilience.NewBreakers(bc)
}

func breakerGauge(s resilience.State) float64 {
	switch s {
	case resilience.HalfOpen:
		return 1
	case resilience.Open:
		return 2
	default:
		return 0
	}
}

// openJournal connects to the configured journal and applies its schema.
func openJournal(ctx context.Context, c *config.Config) (journal.Journal, error) {
	j, err := journal.Open(ctx, c.Journal.Driver, c.Journal.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "open journal")
	}
	if err := j.Migrate(ctx); err != nil {
		_ = j.Close()
		return nil, eris.Wrap(err, "migrate journal")
	}
	return j, nil
}
