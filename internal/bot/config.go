package bot

import (
	"reportbot/internal/config"
	"time"
)

// Config holds per-operation timeouts of the chat bot.
type Config struct {
	QueryTimeout time.Duration // analytic queries (default: 30s)
	LoadTimeout  time.Duration // CSV import (default: 60s)
	ChartTimeout time.Duration // chart rendering (default: 60s)
	StatsTimeout time.Duration // database statistics and export (default: 30s)
	BriefTop     int           // counties listed by the combined query (default: 3)
}

// LoadConfig loads bot configuration.
func LoadConfig(src *config.Source) Config {
	cfg := Config{
		QueryTimeout: src.Duration("bot.query_timeout", 30*time.Second),
		LoadTimeout:  src.Duration("bot.load_timeout", 60*time.Second),
		ChartTimeout: src.Duration("bot.chart_timeout", 60*time.Second),
		StatsTimeout: src.Duration("bot.stats_timeout", 30*time.Second),
		BriefTop:     src.Int("bot.brief_top", 3),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 30 * time.Second
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = 60 * time.Second
	}
	if c.ChartTimeout <= 0 {
		c.ChartTimeout = 60 * time.Second
	}
	if c.StatsTimeout <= 0 {
		c.StatsTimeout = 30 * time.Second
	}
	if c.BriefTop <= 0 {
		c.BriefTop = 3
	}
	return c
}
