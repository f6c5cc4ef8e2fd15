package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/hookgate/internal/callback"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, expands, parses, and validates configuration from a file.
// Credential sets are constructed eagerly here: a malformed token or key is
// a configuration error that blocks startup and never reaches request time.
func Load(configPath string) (*Config, error) {
	return load(configPath, true)
}

// LoadUnverified is Load without the integrity check. Used by 'config lock',
// which must be able to re-pin an intentionally edited file.
func LoadUnverified(configPath string) (*Config, error) {
	return load(configPath, false)
}

func load(configPath string, verify bool) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", absPath, err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	// Verify integrity when the config has been locked.
	if verify {
		if err := VerifyIfLocked(absPath); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR} references with environment values.
// Unset variables expand to the empty string; validation catches the
// resulting holes.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "hookgate"
	}
	if cfg.Service.Listen == "" {
		cfg.Service.Listen = DefaultListen
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = DefaultLogLevel
	}
	if cfg.Service.ActivityBuffer <= 0 {
		cfg.Service.ActivityBuffer = DefaultActivityBuffer
	}
}

// Validate checks the configuration and eagerly derives every referenced
// credential set. All failures here are fatal configuration errors.
func Validate(cfg *Config) error {
	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("no endpoints configured")
	}

	seen := make(map[string]bool, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("endpoint path %q must start with /", ep.Path)
		}
		if seen[ep.Path] {
			return fmt.Errorf("duplicate endpoint path %q", ep.Path)
		}
		seen[ep.Path] = true

		if ep.CredentialRef == "" {
			return fmt.Errorf("endpoint %q: credential_ref is required", ep.Path)
		}
		cred, ok := cfg.Credentials[ep.CredentialRef]
		if !ok {
			return fmt.Errorf("endpoint %q: credential_ref %q not found in credentials", ep.Path, ep.CredentialRef)
		}

		// Derivation doubles as validation of token and key.
		if _, err := callback.NewCredentialSet(cred.Token, cred.EncodingAESKey, cred.ReceiverID); err != nil {
			return fmt.Errorf("endpoint %q: credentials %q: %w", ep.Path, ep.CredentialRef, err)
		}

		if _, err := ParseMaxBodySize(ep.MaxBodySize); err != nil {
			return fmt.Errorf("endpoint %q: invalid max_body_size %q: %w", ep.Path, ep.MaxBodySize, err)
		}
	}

	return nil
}

// ParseMaxBodySize parses size strings like "1MB", "64KB", "2048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func ParseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(size)
	multiplier := int64(1)

	if strings.HasSuffix(upper, "KB") {
		multiplier = 1024
		size = strings.TrimSuffix(upper, "KB")
	} else if strings.HasSuffix(upper, "MB") {
		multiplier = 1024 * 1024
		size = strings.TrimSuffix(upper, "MB")
	} else if strings.HasSuffix(upper, "GB") {
		multiplier = 1024 * 1024 * 1024
		size = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result < 0 { // overflow
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
