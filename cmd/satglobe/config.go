package main

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/auth"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/globe"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/stream"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/swarm"
)

// serverConfig holds listener and upstream settings.
type serverConfig struct {
	Addr        string
	APIBase     string
	TrustProxy  bool
	ServeViewer bool
}

// poolConfig controls the identifier pool fetch and its on-disk copy.
type poolConfig struct {
	Limit    int
	CacheDir string
	MaxFiles int
}

// intEnv reads a positive integer, warning and keeping def on bad input.
func intEnv(logger *slog.Logger, key string, def, floor int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < floor {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func floatEnv(logger *slog.Logger, key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return f
}

// listEnv splits a comma-separated variable, dropping empty entries.
func listEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func boolEnv(logger *slog.Logger, key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return b
}

func loadServerConfig(logger *slog.Logger) serverConfig {
	cfg := serverConfig{
		Addr:        ":8080",
		APIBase:     "http://127.0.0.1:8000",
		ServeViewer: true,
	}
	if v := os.Getenv("SATGLOBE_HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("SATGLOBE_API_BASE"); v != "" {
		cfg.APIBase = strings.TrimRight(v, "/")
	}
	cfg.TrustProxy = boolEnv(logger, "SATGLOBE_TRUST_PROXY", false)
	cfg.ServeViewer = boolEnv(logger, "SATGLOBE_SERVE_VIEWER", true)
	return cfg
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SATGLOBE_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SATGLOBE_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SATGLOBE_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SATGLOBE_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadPoolConfig(logger *slog.Logger) poolConfig {
	cfg := poolConfig{
		Limit:    intEnv(logger, "SATGLOBE_ID_LIMIT", 800, 1),
		CacheDir: os.Getenv("SATGLOBE_POOL_CACHE_DIR"),
		MaxFiles: intEnv(logger, "SATGLOBE_POOL_CACHE_MAX_FILES", 5, 1),
	}

	logger.Info("pool config",
		"limit", cfg.Limit,
		"cache_dir", cfg.CacheDir,
		"max_files", cfg.MaxFiles,
	)
	return cfg
}

func loadGlobeConfig(logger *slog.Logger) globe.Config {
	sw := swarm.DefaultConfig()
	sw.SampleSize = intEnv(logger, "SATGLOBE_SAMPLE_SIZE", sw.SampleSize, 1)
	sw.PollInterval = time.Duration(intEnv(logger, "SATGLOBE_POLL_INTERVAL", int(sw.PollInterval/time.Second), 1)) * time.Second
	sw.PollJitter = time.Duration(intEnv(logger, "SATGLOBE_POLL_JITTER", int(sw.PollJitter/time.Millisecond), 0)) * time.Millisecond
	sw.StartSpread = time.Duration(intEnv(logger, "SATGLOBE_START_SPREAD", int(sw.StartSpread/time.Millisecond), 0)) * time.Millisecond
	sw.Entity.LerpSpeed = floatEnv(logger, "SATGLOBE_LERP_SPEED", sw.Entity.LerpSpeed)

	cfg := globe.Config{
		FPS:        intEnv(logger, "SATGLOBE_FPS", 60, 1),
		Swarm:      sw,
		Boundaries: os.Getenv("SATGLOBE_GEOJSON"),
	}

	logger.Info("globe config",
		"fps", cfg.FPS,
		"sample_size", sw.SampleSize,
		"poll_interval_seconds", sw.PollInterval.Seconds(),
		"poll_jitter_ms", sw.PollJitter.Milliseconds(),
		"start_spread_ms", sw.StartSpread.Milliseconds(),
		"lerp_speed", sw.Entity.LerpSpeed,
		"geojson", cfg.Boundaries,
	)
	return cfg
}

func loadStreamConfig(logger *slog.Logger, trustProxy bool) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: intEnv(logger, "SATGLOBE_STREAM_MAX_CONCURRENT", 10, 1),
		MaxTotal:           intEnv(logger, "SATGLOBE_STREAM_MAX_TOTAL", 1000, 1),
		FPS:                intEnv(logger, "SATGLOBE_STREAM_FPS", 10, 1),
		KeepaliveInterval:  time.Duration(intEnv(logger, "SATGLOBE_STREAM_KEEPALIVE_INTERVAL", 30, 1)) * time.Second,
		TrustProxy:         trustProxy,
		AllowedOrigins:     listEnv("SATGLOBE_WS_ALLOWED_ORIGINS"),
	}
	if cfg.FPS > 60 {
		logger.Warn("invalid SATGLOBE_STREAM_FPS value, using default", "value", cfg.FPS, "default", 10)
		cfg.FPS = 10
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"fps", cfg.FPS,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"ws_allowed_origins", cfg.AllowedOrigins,
	)
	return cfg
}

// logLevel parses SATGLOBE_LOG_LEVEL (debug, info, warn, error).
func logLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(os.Getenv("SATGLOBE_LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
