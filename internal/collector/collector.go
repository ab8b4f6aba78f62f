package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jgoulah/gridexporter/internal/nep"
	"github.com/jgoulah/gridexporter/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

// TokenSource hands out a bearer token that is valid for the next request
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// UsageFetcher runs one usage query
type UsageFetcher interface {
	FetchUsage(ctx context.Context, token string, q nep.UsageQuery) (interface{}, error)
}

// Options tune a Collector. Zero values select the defaults.
type Options struct {
	Namespace   string           // metric name prefix, default "nep"
	Services    []models.Service // collection order, default WATER, ELECTRIC
	HistoryDays int              // default nep.DefaultHistoryDays
	Frequency   string           // default nep.FrequencyMonthly
}

// Result is the outcome of one collection cycle
type Result struct {
	Snapshots []models.UsageSnapshot
	Up        bool
}

// Collector fetches the latest usage of every tracked service at one premise
// each time it is collected
type Collector struct {
	tokens    TokenSource
	client    UsageFetcher
	premiseID string
	opts      Options
	now       func() time.Time
	logger    *slog.Logger

	usageDesc *prometheus.Desc
	upDesc    *prometheus.Desc
}

// New creates a collector for premiseID
func New(tokens TokenSource, client UsageFetcher, premiseID string, opts Options) *Collector {
	if opts.Namespace == "" {
		opts.Namespace = "nep"
	}
	if len(opts.Services) == 0 {
		opts.Services = models.DefaultServices
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = nep.DefaultHistoryDays
	}
	if opts.Frequency == "" {
		opts.Frequency = nep.FrequencyMonthly
	}

	return &Collector{
		tokens:    tokens,
		client:    client,
		premiseID: premiseID,
		opts:      opts,
		now:       time.Now,
		logger:    slog.Default().With("component", "collector", "premise", premiseID),
		usageDesc: prometheus.NewDesc(
			prometheus.BuildFQName(opts.Namespace, "", "usage"),
			"Latest usage for service",
			[]string{"service", "premise"}, nil,
		),
		upDesc: prometheus.NewDesc(
			prometheus.BuildFQName(opts.Namespace, "", "api_up"),
			"API availability (1=up, 0=down)",
			nil, nil,
		),
	}
}

// PremiseID returns the premise this collector reports on
func (c *Collector) PremiseID() string {
	return c.premiseID
}

// Cycle runs one collection. It never fails: any error leaves the failing
// service out of the snapshots and reports the API as down.
func (c *Collector) Cycle(ctx context.Context) Result {
	res := Result{Up: true}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Error("collector: could not obtain token", "err", err)
		res.Up = false
		return res
	}

	window := nep.NewDateWindow(c.now(), c.opts.HistoryDays)

	for _, service := range c.opts.Services {
		value, err := c.fetchService(ctx, token, window.Query(service, c.premiseID, c.opts.Frequency))
		if err != nil {
			c.logger.Warn("collector: usage fetch failed", "service", service, "err", err)
			res.Up = false
			continue
		}
		res.Snapshots = append(res.Snapshots, models.UsageSnapshot{
			Service:   service,
			PremiseID: c.premiseID,
			Value:     value,
		})
	}

	return res
}

func (c *Collector) fetchService(ctx context.Context, token string, q nep.UsageQuery) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic fetching %s usage: %v", q.Service, r)
		}
	}()

	doc, err := c.client.FetchUsage(ctx, token, q)
	if err != nil {
		return 0, err
	}
	return nep.ExtractLatest(doc), nil
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.usageDesc
	ch <- c.upDesc
}

// Collect implements prometheus.Collector. Every scrape triggers a fresh
// cycle against the API.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	start := time.Now()
	res := c.Cycle(context.Background())

	for _, s := range res.Snapshots {
		ch <- prometheus.MustNewConstMetric(c.usageDesc, prometheus.GaugeValue, s.Value, string(s.Service), s.PremiseID)
	}

	up := 0.0
	if res.Up {
		up = 1
	}
	ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, up)

	c.logger.Debug("collector: cycle complete", "up", res.Up, "snapshots", len(res.Snapshots), "duration", time.Since(start))
}
