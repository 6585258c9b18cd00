package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/minhtran2412/loadscope/internal/autoscale"
	"github.com/minhtran2412/loadscope/internal/storage"
)

// Storage backends for rate-limit counters.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the top-level configuration for a loadscope session.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Replay    ReplayConfig     `json:"replay"`
	Dashboard DashboardConfig  `json:"dashboard"`
	RateLimit RateLimitConfig  `json:"rate_limit"`
	Storage   StorageConfig    `json:"storage"`
	Scaling   autoscale.Config `json:"scaling"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// ReplayConfig controls how recorded traffic is played back.
type ReplayConfig struct {
	// Speed is the playback multiplier; non-positive means unlimited.
	Speed   float64 `json:"speed"`
	Loop    bool    `json:"loop"`
	Shuffle bool    `json:"shuffle"`
	// BatchSize is how many records each dashboard poll pulls.
	BatchSize int `json:"batch_size"`
}

// DashboardConfig controls the live metrics view.
type DashboardConfig struct {
	// BufferSize caps how many recent records feed the charts.
	BufferSize int `json:"buffer_size"`
	// BinWidth is the chart bucket size, one of 1m, 5m, 15m, 30m, 1h.
	BinWidth time.Duration `json:"bin_width"`
}

// RateLimitConfig guards the advisory API.
type RateLimitConfig struct {
	Rate   int           `json:"rate"`
	Window time.Duration `json:"window"`
}

// StorageConfig selects the backend for rate-limit counters.
type StorageConfig struct {
	Backend string              `json:"backend"`
	Redis   storage.RedisConfig `json:"redis"`
}

// binWidths enumerates the chart bucket sizes the dashboard offers.
var binWidths = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
}

// ParseBinWidth maps a bucket label to its duration.
func ParseBinWidth(s string) (time.Duration, error) {
	d, ok := binWidths[s]
	if !ok {
		return 0, fmt.Errorf("unknown bin width %q, must be one of: 1m, 5m, 15m, 30m, 1h", s)
	}
	return d, nil
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Replay: ReplayConfig{
			Speed:     1.0,
			BatchSize: 30,
		},
		Dashboard: DashboardConfig{
			BufferSize: 5000,
			BinWidth:   time.Minute,
		},
		RateLimit: RateLimitConfig{
			Rate:   120,
			Window: time.Minute,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Redis: storage.RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
		},
		Scaling: autoscale.DefaultConfig(),
	}
}

// Validate checks that the config is valid. Replay speed is exempt: any
// non-positive value just means unlimited playback.
func (c Config) Validate() error {
	if c.Replay.BatchSize <= 0 {
		return fmt.Errorf("replay.batch_size must be positive, got %d", c.Replay.BatchSize)
	}
	if c.Dashboard.BufferSize <= 0 {
		return fmt.Errorf("dashboard.buffer_size must be positive, got %d", c.Dashboard.BufferSize)
	}
	validWidth := false
	for _, d := range binWidths {
		if c.Dashboard.BinWidth == d {
			validWidth = true
			break
		}
	}
	if !validWidth {
		return fmt.Errorf("dashboard.bin_width must be one of: 1m, 5m, 15m, 30m, 1h, got %s", c.Dashboard.BinWidth)
	}
	if c.RateLimit.Rate <= 0 {
		return fmt.Errorf("rate_limit.rate must be positive, got %d", c.RateLimit.Rate)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window)
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown storage backend %q, must be one of: memory, redis", c.Storage.Backend)
	}
	if err := c.Scaling.Validate(); err != nil {
		return err
	}
	return nil
}

// LoadFile reads a JSON config file and merges it with defaults.
// Fields not specified in the file retain their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Use a raw intermediate struct to handle duration parsing and to
	// tell "absent" from "zero" on fields where zero is meaningful.
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if raw.Server.Addr != "" {
		cfg.Server.Addr = raw.Server.Addr
	}
	if raw.Replay.Speed != nil {
		cfg.Replay.Speed = *raw.Replay.Speed
	}
	if raw.Replay.Loop != nil {
		cfg.Replay.Loop = *raw.Replay.Loop
	}
	if raw.Replay.Shuffle != nil {
		cfg.Replay.Shuffle = *raw.Replay.Shuffle
	}
	if raw.Replay.BatchSize > 0 {
		cfg.Replay.BatchSize = raw.Replay.BatchSize
	}
	if raw.Dashboard.BufferSize > 0 {
		cfg.Dashboard.BufferSize = raw.Dashboard.BufferSize
	}
	if raw.Dashboard.BinWidth != "" {
		d, err := ParseBinWidth(raw.Dashboard.BinWidth)
		if err != nil {
			return cfg, fmt.Errorf("parsing dashboard.bin_width: %w", err)
		}
		cfg.Dashboard.BinWidth = d
	}
	if raw.RateLimit.Rate > 0 {
		cfg.RateLimit.Rate = raw.RateLimit.Rate
	}
	if raw.RateLimit.Window != "" {
		d, err := time.ParseDuration(raw.RateLimit.Window)
		if err != nil {
			return cfg, fmt.Errorf("parsing rate_limit.window: %w", err)
		}
		cfg.RateLimit.Window = d
	}
	if raw.Storage.Backend != "" {
		cfg.Storage.Backend = raw.Storage.Backend
	}
	if raw.Storage.Redis.Host != "" {
		cfg.Storage.Redis.Host = raw.Storage.Redis.Host
	}
	if raw.Storage.Redis.Port > 0 {
		cfg.Storage.Redis.Port = raw.Storage.Redis.Port
	}
	if raw.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = raw.Storage.Redis.Password
	}
	if raw.Storage.Redis.DB > 0 {
		cfg.Storage.Redis.DB = raw.Storage.Redis.DB
	}
	if raw.Scaling.CapacityPerInstance > 0 {
		cfg.Scaling.CapacityPerInstance = raw.Scaling.CapacityPerInstance
	}
	if raw.Scaling.UnitCost > 0 {
		cfg.Scaling.UnitCost = raw.Scaling.UnitCost
	}
	if raw.Scaling.Cooldown != "" {
		d, err := time.ParseDuration(raw.Scaling.Cooldown)
		if err != nil {
			return cfg, fmt.Errorf("parsing scaling.cooldown: %w", err)
		}
		cfg.Scaling.Cooldown = d
	}
	if raw.Scaling.ZScoreThreshold > 0 {
		cfg.Scaling.ZScoreThreshold = raw.Scaling.ZScoreThreshold
	}
	if raw.Scaling.TargetUtilization > 0 {
		cfg.Scaling.TargetUtilization = raw.Scaling.TargetUtilization
	}

	return cfg, nil
}

// rawConfig is the JSON-friendly representation with string durations.
type rawConfig struct {
	Server struct {
		Addr string `json:"addr"`
	} `json:"server"`
	Replay struct {
		Speed     *float64 `json:"speed"`
		Loop      *bool    `json:"loop"`
		Shuffle   *bool    `json:"shuffle"`
		BatchSize int      `json:"batch_size"`
	} `json:"replay"`
	Dashboard struct {
		BufferSize int    `json:"buffer_size"`
		BinWidth   string `json:"bin_width"`
	} `json:"dashboard"`
	RateLimit struct {
		Rate   int    `json:"rate"`
		Window string `json:"window"`
	} `json:"rate_limit"`
	Storage struct {
		Backend string `json:"backend"`
		Redis   struct {
			Host     string `json:"host"`
			Port     int    `json:"port"`
			Password string `json:"password"`
			DB       int    `json:"db"`
		} `json:"redis"`
	} `json:"storage"`
	Scaling struct {
		CapacityPerInstance float64 `json:"capacity_per_instance"`
		UnitCost            float64 `json:"unit_cost"`
		Cooldown            string  `json:"cooldown"`
		ZScoreThreshold     float64 `json:"zscore_threshold"`
		TargetUtilization   float64 `json:"target_utilization"`
	} `json:"scaling"`
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	example := `{
  "server": {
    "addr": ":8080"
  },
  "replay": {
    "speed": 1.0,
    "loop": false,
    "shuffle": false,
    "batch_size": 30
  },
  "dashboard": {
    "buffer_size": 5000,
    "bin_width": "1m"
  },
  "rate_limit": {
    "rate": 120,
    "window": "1m"
  },
  "storage": {
    "backend": "memory",
    "redis": {
      "host": "localhost",
      "port": 6379
    }
  },
  "scaling": {
    "capacity_per_instance": 1000,
    "unit_cost": 0.05,
    "cooldown": "5m",
    "zscore_threshold": 3,
    "target_utilization": 0.8
  }
}
`
	return os.WriteFile(path, []byte(example), 0o644)
}
