// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
)

const envPrefix = "DMM_"

type Config struct {
	HTTP    HTTPServer   `yaml:"http" mapstructure:"http"`
	ValKey  ValKey       `yaml:"valkey" mapstructure:"valkey"`
	Store   SessionStore `yaml:"sessionStore" mapstructure:"sessionstore"`
	Token   Token        `yaml:"token" mapstructure:"token"`
	Browser Browser      `yaml:"browser" mapstructure:"browser"`
	Flow    Flow         `yaml:"flow" mapstructure:"flow"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" mapstructure:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" mapstructure:"shutdowntimeout"`
}

type ValKey struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Host     string `yaml:"host" mapstructure:"host"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

type SessionStore struct {
	// EncryptionKey is the base64-encoded 32-byte AES key protecting
	// persisted session blobs. Required.
	EncryptionKey string        `yaml:"encryptionKey" mapstructure:"encryptionkey"`
	SessionTTL    time.Duration `yaml:"sessionTTL" mapstructure:"sessionttl"`
}

type Token struct {
	// SigningKey is the HMAC secret for issued tokens. Required.
	SigningKey      string        `yaml:"signingKey" mapstructure:"signingkey"`
	AccessTokenTTL  time.Duration `yaml:"accessTokenTTL" mapstructure:"accesstokenttl"`
	RefreshTokenTTL time.Duration `yaml:"refreshTokenTTL" mapstructure:"refreshtokenttl"`
}

type Browser struct {
	Headless          bool          `yaml:"headless" mapstructure:"headless"`
	LaunchArgs        []string      `yaml:"launchArgs" mapstructure:"launchargs"`
	IgnoreDefaultArgs []string      `yaml:"ignoreDefaultArgs" mapstructure:"ignoredefaultargs"`
	UserAgents        []string      `yaml:"userAgents" mapstructure:"useragents"`
	Locales           []string      `yaml:"locales" mapstructure:"locales"`
	Geolocations      []Geolocation `yaml:"geolocations" mapstructure:"geolocations"`
	Proxies           []Proxy       `yaml:"proxies" mapstructure:"proxies"`
	NavigationTimeout time.Duration `yaml:"navigationTimeout" mapstructure:"navigationtimeout"`
	ReadyTimeout      time.Duration `yaml:"readyTimeout" mapstructure:"readytimeout"`
}

type Geolocation struct {
	Timezone  string  `yaml:"timezone" mapstructure:"timezone"`
	Longitude float64 `yaml:"longitude" mapstructure:"longitude"`
	Latitude  float64 `yaml:"latitude" mapstructure:"latitude"`
}

type Proxy struct {
	Server   string `yaml:"server" mapstructure:"server"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

type Flow struct {
	LoginURL string `yaml:"loginURL" mapstructure:"loginurl"`
	InboxURL string `yaml:"inboxURL" mapstructure:"inboxurl"`
}

// Default returns the configuration with every tunable at its default value.
// Keys are intentionally left empty and must come from the file or the
// environment.
func Default() *Config {
	return &Config{
		HTTP: HTTPServer{
			Address:         ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		ValKey: ValKey{
			Enabled: true,
			Host:    "localhost:6379",
			Prefix:  "dm-manager",
		},
		Store: SessionStore{
			SessionTTL: 7 * 24 * time.Hour,
		},
		Token: Token{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Browser: Browser{
			Headless: true,
			LaunchArgs: []string{
				"--disable-xss-auditor",
				"--no-sandbox",
				"--disable-setuid-sandbox",
				"--disable-blink-features=AutomationControlled",
				"--disable-features=IsolateOrigins,site-per-process",
				"--disable-infobars",
			},
			IgnoreDefaultArgs: []string{"--enable-automation", "--disable-extensions"},
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/74.0.3729.169 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4.1 Safari/605.1.15",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:130.0) Gecko/20100101 Firefox/130.0",
			},
			Locales: []string{"en-US", "en-GB", "fr-FR"},
			Geolocations: []Geolocation{
				{Timezone: "America/New_York", Longitude: -74.006, Latitude: 40.7128},
				{Timezone: "America/Chicago", Longitude: -87.6298, Latitude: 41.8781},
				{Timezone: "America/Los_Angeles", Longitude: -118.2437, Latitude: 34.0522},
				{Timezone: "America/Denver", Longitude: -104.9903, Latitude: 39.7392},
				{Timezone: "America/Phoenix", Longitude: -112.0740, Latitude: 33.4484},
				{Timezone: "America/Anchorage", Longitude: -149.9003, Latitude: 61.2181},
				{Timezone: "America/Detroit", Longitude: -83.0458, Latitude: 42.3314},
			},
			NavigationTimeout: 30 * time.Second,
			ReadyTimeout:      10 * time.Second,
		},
		Flow: Flow{
			LoginURL: "https://www.instagram.com/accounts/login/",
			InboxURL: "https://www.instagram.com/direct/inbox/",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) and overlays DMM_-prefixed environment variables, for
// example DMM_TOKEN_SIGNINGKEY or DMM_VALKEY_HOST.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := overlayEnv(cfg, os.Environ()); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings that are fatal configuration errors at
// construction time rather than at use time.
func (c *Config) Validate() error {
	key, err := base64.StdEncoding.DecodeString(c.Store.EncryptionKey)
	if err != nil {
		return fmt.Errorf("decoding session encryption key: %w", err)
	}
	if len(key) != 32 {
		return errors.New("session encryption key must be 32 bytes")
	}
	if len(c.Token.SigningKey) < 32 {
		return errors.New("token signing key must be at least 32 bytes")
	}
	if c.Token.AccessTokenTTL >= c.Token.RefreshTokenTTL {
		return errors.New("access token TTL must be shorter than refresh token TTL")
	}
	return nil
}

// EncryptionKeyBytes returns the decoded session encryption key. Call
// Validate first.
func (c *Config) EncryptionKeyBytes() []byte {
	key, _ := base64.StdEncoding.DecodeString(c.Store.EncryptionKey)
	return key
}

func overlayEnv(cfg *Config, environ []string) error {
	overrides := map[string]any{}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, envPrefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(name, envPrefix)), "_")

		node := overrides
		for _, segment := range path[:len(path)-1] {
			child, ok := node[segment].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[segment] = child
			}
			node = child
		}
		node[path[len(path)-1]] = value
	}

	if len(overrides) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("building decoder: %w", err)
	}
	if err := decoder.Decode(overrides); err != nil {
		return fmt.Errorf("decoding overrides: %w", err)
	}

	return nil
}
