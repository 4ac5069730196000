// Package config loads bridge configuration from environment variables
// with an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bridge.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// HTTP API settings
	BindAddr string

	// Tab matching
	TabURLFilter string

	// Browser launch settings
	LaunchBrowser bool
	BrowserBinary string
	ProfileDir    string

	// Delegate policy knobs
	CacheMode               string
	BlockContentURLs        bool
	BlockFileURLs           bool
	BlockNetworkLoads       bool
	AcceptThirdPartyCookies bool
	Blocklist               []string
	InterceptDir            string

	// Logging
	LogLevel string
	LogFile  string

	// Optional push notification endpoint for fatal startup failures.
	NotifyEndpoint string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:              getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:                 getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9220),
		BindAddr:                getEnvOrDefault("BRIDGE_BIND_ADDR", "127.0.0.1:8190"),
		TabURLFilter:            getEnvOrDefault("BRIDGE_TAB_URL_FILTER", ""),
		LaunchBrowser:           getEnvBoolOrDefault("BRIDGE_LAUNCH_BROWSER", false),
		BrowserBinary:           getEnvOrDefault("BRIDGE_BROWSER_BINARY", ""),
		ProfileDir:              getEnvOrDefault("BRIDGE_PROFILE_DIR", "./browser_profile"),
		CacheMode:               getEnvOrDefault("BRIDGE_CACHE_MODE", "default"),
		BlockContentURLs:        getEnvBoolOrDefault("BRIDGE_BLOCK_CONTENT_URLS", false),
		BlockFileURLs:           getEnvBoolOrDefault("BRIDGE_BLOCK_FILE_URLS", false),
		BlockNetworkLoads:       getEnvBoolOrDefault("BRIDGE_BLOCK_NETWORK_LOADS", false),
		AcceptThirdPartyCookies: getEnvBoolOrDefault("BRIDGE_ACCEPT_THIRD_PARTY_COOKIES", false),
		Blocklist:               getEnvListOrDefault("BRIDGE_BLOCKLIST", nil),
		InterceptDir:            getEnvOrDefault("BRIDGE_INTERCEPT_DIR", ""),
		LogLevel:                strings.ToLower(getEnvOrDefault("BRIDGE_LOG_LEVEL", "info")),
		LogFile:                 getEnvOrDefault("BRIDGE_LOG_FILE", "logs/wv_bridge.log"),
		NotifyEndpoint:          getEnvOrDefault("BRIDGE_NOTIFY_ENDPOINT", ""),
	}

	return cfg, nil
}

// GetCDPURL returns the full CDP HTTP endpoint used by the chromedp remote
// allocator.
func (c *Config) GetCDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
