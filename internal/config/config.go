// Package config resolves runtime configuration from environment
// variables (a .env file is loaded by the daemon before this runs).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	API    APIConfig
	Audio  AudioConfig
	Duck   DuckConfig
	Socket string
	Feed   FeedConfig
}

type APIConfig struct {
	BaseURL   string
	VoicePath string
	ChatPath  string
	Timeout   time.Duration
	ProxyAddr string
}

type AudioConfig struct {
	SampleRate int
	FrameSize  int
}

type DuckConfig struct {
	Enabled   bool
	Factor    float64
	MinVolume int
	Fade      time.Duration
}

type FeedConfig struct {
	URL string // empty disables the feed
}

// Load resolves configuration from the environment with defaults that
// match a local backend.
func Load() Config {
	cfg := Config{
		API: APIConfig{
			BaseURL:   envOrDefault("JARVIS_API_URL", "http://localhost:8000"),
			VoicePath: envOrDefault("JARVIS_VOICE_PATH", "/api/voice"),
			ChatPath:  envOrDefault("JARVIS_CHAT_PATH", "/api/chat"),
			Timeout:   time.Duration(envOrDefaultInt("JARVIS_HTTP_TIMEOUT_MS", 60000)) * time.Millisecond,
			ProxyAddr: strings.TrimSpace(os.Getenv("JARVIS_SOCKS_PROXY")),
		},
		Audio: AudioConfig{
			SampleRate: envOrDefaultInt("JARVIS_SAMPLE_RATE", 16000),
			FrameSize:  envOrDefaultInt("JARVIS_FRAME_SIZE", 1024),
		},
		Duck: DuckConfig{
			Enabled:   envOrDefaultBool("JARVIS_DUCK", true),
			Factor:    envOrDefaultFloat("JARVIS_DUCK_FACTOR", 0.3),
			MinVolume: envOrDefaultInt("JARVIS_DUCK_MIN_VOLUME", 10),
			Fade:      time.Duration(envOrDefaultInt("JARVIS_DUCK_FADE_MS", 150)) * time.Millisecond,
		},
		Socket: envOrDefault("JARVIS_SOCKET", "/tmp/jarvisd.sock"),
		Feed: FeedConfig{
			URL: strings.TrimSpace(os.Getenv("JARVIS_FEED_URL")),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.FrameSize <= 0 {
		cfg.Audio.FrameSize = 1024
	}
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 60 * time.Second
	}

	return cfg
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
