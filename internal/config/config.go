// Package config loads the provider list from YAML. URLs may reference
// environment variables with ${VAR}, which are expanded after an optional
// .env file has been loaded.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/dmagro/eth-block-locator/internal/rpc"
)

// Config is the root of the YAML file.
type Config struct {
	Providers []Provider `yaml:"providers"`
	Defaults  Defaults   `yaml:"defaults"`
}

// Provider is a single RPC endpoint. Zero fields inherit from Defaults.
type Provider struct {
	Name      string        `yaml:"name"`
	URL       string        `yaml:"url"`
	Transport string        `yaml:"transport,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	RateLimit float64       `yaml:"rate_limit,omitempty"`
}

// Defaults apply to every provider that does not override them.
type Defaults struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	RateLimit      float64       `yaml:"rate_limit"`
}

// Default returns the settings used when no config file exists.
func Default() *Config {
	return &Config{
		Defaults: Defaults{
			Timeout:        10 * time.Second,
			MaxRetries:     3,
			BackoffInitial: 100 * time.Millisecond,
			BackoffMax:     2 * time.Second,
		},
	}
}

// Validate checks the configuration and fills provider fields from Defaults.
// Suspicious but usable values are logged as warnings.
func (c *Config) Validate(log zerolog.Logger) error {
	if c.Defaults.Timeout <= 0 {
		return errors.New("defaults.timeout is required")
	}
	if c.Defaults.MaxRetries < 0 {
		return errors.New("defaults.max_retries must be >= 0")
	}
	if c.Defaults.BackoffInitial < 0 || c.Defaults.BackoffMax < 0 {
		return errors.New("defaults.backoff_initial and defaults.backoff_max must be >= 0")
	}
	if c.Defaults.BackoffMax > 0 && c.Defaults.BackoffInitial > c.Defaults.BackoffMax {
		return errors.New("defaults.backoff_initial must not exceed defaults.backoff_max")
	}
	if c.Defaults.RateLimit < 0 {
		return errors.New("defaults.rate_limit must be >= 0")
	}

	warnTimeout := func(scope string, d time.Duration) {
		const low = 500 * time.Millisecond
		const high = 2 * time.Minute
		if d > 0 && d < low {
			log.Warn().Str("scope", scope).Dur("timeout", d).Msg("timeout is very low; requests may fail under normal network jitter")
		}
		if d > high {
			log.Warn().Str("scope", scope).Dur("timeout", d).Msg("timeout is very high; failures may take a long time to surface")
		}
	}
	warnTimeout("defaults", c.Defaults.Timeout)

	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Name == "" {
			return fmt.Errorf("provider #%d: name is required", i+1)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %s: duplicate name", p.Name)
		}
		seen[p.Name] = true

		if p.Timeout == 0 {
			p.Timeout = c.Defaults.Timeout
		}
		if p.RateLimit == 0 {
			p.RateLimit = c.Defaults.RateLimit
		}
		if p.RateLimit < 0 {
			return fmt.Errorf("provider %s: rate_limit must be >= 0", p.Name)
		}
		switch p.Transport {
		case "":
			p.Transport = rpc.TransportJSONRPC
		case rpc.TransportJSONRPC, rpc.TransportEthClient:
		default:
			return fmt.Errorf("provider %s: unknown transport %q (expected %s or %s)", p.Name, p.Transport, rpc.TransportJSONRPC, rpc.TransportEthClient)
		}
		if err := validateURL(p.URL, p.Transport); err != nil {
			return fmt.Errorf("provider %s: %w", p.Name, err)
		}

		warnTimeout("provider "+p.Name, p.Timeout)
	}

	return nil
}

// validateURL accepts http(s) for both transports and ws(s) for ethclient.
func validateURL(raw, transport string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("invalid url (missing scheme or host)")
	}
	switch {
	case u.Scheme == "http" || u.Scheme == "https":
		return nil
	case (u.Scheme == "ws" || u.Scheme == "wss") && transport == rpc.TransportEthClient:
		return nil
	default:
		return fmt.Errorf("invalid url scheme %q for %s transport", u.Scheme, transport)
	}
}

// Find returns the provider with the given name.
func (c *Config) Find(name string) (Provider, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return Provider{}, false
}

// AdHoc builds a provider for a URL given on the command line.
func (c *Config) AdHoc(rawURL string) (Provider, error) {
	if err := validateURL(rawURL, rpc.TransportJSONRPC); err != nil {
		return Provider{}, err
	}
	return Provider{
		Name:      "rpc-url",
		URL:       rawURL,
		Transport: rpc.TransportJSONRPC,
		Timeout:   c.Defaults.Timeout,
		RateLimit: c.Defaults.RateLimit,
	}, nil
}

// ClientConfig turns p into the rpc layer's configuration.
func (c *Config) ClientConfig(p Provider, obs rpc.Observer) rpc.ClientConfig {
	return rpc.ClientConfig{
		Name:           p.Name,
		URL:            p.URL,
		Transport:      p.Transport,
		Timeout:        p.Timeout,
		MaxRetries:     c.Defaults.MaxRetries,
		BackoffInitial: c.Defaults.BackoffInitial,
		BackoffMax:     c.Defaults.BackoffMax,
		RateLimit:      p.RateLimit,
		Observer:       obs,
	}
}

// Load reads and validates the YAML file at path. A missing file yields
// Default when optional is set, so that --rpc-url works without a config.
func Load(path string, optional bool, log zerolog.Logger) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			log.Debug().Str("path", path).Msg("no config file, using defaults")
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(log); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads KEY=VALUE pairs from the given .env files, or ./.env when
// none are given. Values from the file override the process environment. A
// missing file is not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Overload(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
