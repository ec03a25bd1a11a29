package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "insightd/pkg/config"
)

// EngineConfig controls the scheduler loop.
type EngineConfig struct {
	TickSeconds             int `yaml:"tick_seconds"`
	SnapshotRetentionDays   int `yaml:"snapshot_retention_days"`
	CollectorTimeoutSeconds int `yaml:"collector_timeout_seconds"`
}

// CollectorConfig configures one registered collector.
type CollectorConfig struct {
	Enabled         *bool  `yaml:"enabled"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	URL             string `yaml:"url"`
}

// IsEnabled defaults to true when the key is absent.
func (c CollectorConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Interval returns the poll interval, defaulting to 5 minutes.
func (c CollectorConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// AnalyzerConfig configures one analyzer.
type AnalyzerConfig struct {
	Enabled   *bool `yaml:"enabled"`
	AlertDays int   `yaml:"alert_days"`
}

func (a AnalyzerConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Threshold bounds one metric path ("collector.dot.path").
type Threshold struct {
	Warning          *float64 `yaml:"warning"`
	Critical         *float64 `yaml:"critical"`
	SustainedMinutes int      `yaml:"sustained_minutes"`
	LowerIsWorse     bool     `yaml:"lower_is_worse"`
}

// DecisionConfig controls budget, quiet hours and dedup cooldown.
type DecisionConfig struct {
	MaxReachOutsPerDay int `yaml:"max_reach_outs_per_day"`
	QuietHoursStart    int `yaml:"quiet_hours_start"`
	QuietHoursEnd      int `yaml:"quiet_hours_end"`
	CooldownMinutes    int `yaml:"cooldown_minutes"`
}

func (d DecisionConfig) Cooldown() time.Duration {
	return time.Duration(d.CooldownMinutes) * time.Minute
}

// ReportConfig configures one scheduled report.
type ReportConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Time    string `yaml:"time"` // "HH:MM"
	Day     string `yaml:"day"`  // weekday name, weekly reports only
}

func (r ReportConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// DeliveryConfig holds the scheduled report definitions.
type DeliveryConfig struct {
	Morning ReportConfig `yaml:"morning"`
	Evening ReportConfig `yaml:"evening"`
	Weekly  ReportConfig `yaml:"weekly"`
}

// Config is the full daemon configuration.
type Config struct {
	Timezone   string                     `yaml:"timezone"`
	Engine     EngineConfig               `yaml:"engine"`
	Collectors map[string]CollectorConfig `yaml:"collectors"`
	Analyzers  map[string]AnalyzerConfig  `yaml:"analyzers"`
	Thresholds map[string]Threshold       `yaml:"thresholds"`
	Decision   DecisionConfig             `yaml:"decision"`
	Delivery   DeliveryConfig             `yaml:"delivery"`

	DB     pkgconfig.DBConfig     `yaml:"db"`
	Redis  pkgconfig.RedisConfig  `yaml:"redis"`
	MQ     pkgconfig.MQConfig     `yaml:"mq"`
	Server pkgconfig.ServerConfig `yaml:"server"`

	loc *time.Location
}

// Load reads the layered YAML config and validates it. Misconfiguration
// is fatal here, before the engine loop ever starts.
func Load() (*Config, error) {
	env := pkgconfig.GetConfigEnv()
	configDir := pkgconfig.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := pkgconfig.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(cfgData, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Timezone: "UTC",
		Engine: EngineConfig{
			TickSeconds:             10,
			SnapshotRetentionDays:   30,
			CollectorTimeoutSeconds: 30,
		},
		Collectors: map[string]CollectorConfig{},
		Analyzers:  map[string]AnalyzerConfig{},
		Thresholds: map[string]Threshold{},
		Decision: DecisionConfig{
			MaxReachOutsPerDay: 5,
			QuietHoursStart:    22,
			QuietHoursEnd:      8,
			CooldownMinutes:    60,
		},
		Delivery: DeliveryConfig{
			Morning: ReportConfig{Time: "10:00"},
			Evening: ReportConfig{Time: "21:00"},
			Weekly:  ReportConfig{Time: "20:00", Day: "sunday"},
		},
		Server: pkgconfig.ServerConfig{Port: "8080"},
	}
}

// Validate checks everything the loop depends on. Errors here are meant
// to stop startup.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.loc = loc

	if c.Engine.TickSeconds <= 0 {
		return fmt.Errorf("engine.tick_seconds must be positive, got %d", c.Engine.TickSeconds)
	}
	if c.Engine.SnapshotRetentionDays <= 0 {
		return fmt.Errorf("engine.snapshot_retention_days must be positive, got %d", c.Engine.SnapshotRetentionDays)
	}

	if c.Decision.MaxReachOutsPerDay < 0 {
		return fmt.Errorf("decision.max_reach_outs_per_day must not be negative, got %d", c.Decision.MaxReachOutsPerDay)
	}
	if c.Decision.QuietHoursStart < 0 || c.Decision.QuietHoursStart > 23 {
		return fmt.Errorf("decision.quiet_hours_start must be 0-23, got %d", c.Decision.QuietHoursStart)
	}
	if c.Decision.QuietHoursEnd < 0 || c.Decision.QuietHoursEnd > 23 {
		return fmt.Errorf("decision.quiet_hours_end must be 0-23, got %d", c.Decision.QuietHoursEnd)
	}
	if c.Decision.CooldownMinutes < 0 {
		return fmt.Errorf("decision.cooldown_minutes must not be negative, got %d", c.Decision.CooldownMinutes)
	}

	for name, rep := range map[string]ReportConfig{
		"morning": c.Delivery.Morning,
		"evening": c.Delivery.Evening,
		"weekly":  c.Delivery.Weekly,
	} {
		if _, _, err := ParseClock(rep.Time); err != nil {
			return fmt.Errorf("delivery.%s.time: %w", name, err)
		}
	}
	if _, err := ParseWeekday(c.Delivery.Weekly.Day); err != nil {
		return fmt.Errorf("delivery.weekly.day: %w", err)
	}

	for name, t := range c.Thresholds {
		if t.Warning == nil {
			return fmt.Errorf("thresholds.%s: warning is required", name)
		}
	}

	return nil
}

// Location returns the configured local timezone.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		c.loc = time.UTC
	}
	return c.loc
}

// ThresholdNames returns threshold keys in deterministic order.
func (c *Config) ThresholdNames() []string {
	names := make([]string, 0, len(c.Thresholds))
	for name := range c.Thresholds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// ParseWeekday parses a lowercase weekday name.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(s) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	default:
		return time.Sunday, fmt.Errorf("invalid weekday %q", s)
	}
}
