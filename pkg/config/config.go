package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds derived runtime values that other packages may query
// at runtime (populated during startup after merging env+file).
type RuntimeConfig struct {
	BackendKeys map[string]struct{}
	SigningKeys map[string]struct{}
}

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// GetBackendKeys returns a copy of configured backend keys.
func GetBackendKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.BackendKeys == nil {
		return out
	}
	for k := range runtimeCfg.BackendKeys {
		out[k] = struct{}{}
	}
	return out
}

// GetSigningKeys returns a copy of configured signing keys.
func GetSigningKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.SigningKeys == nil {
		return out
	}
	for k := range runtimeCfg.SigningKeys {
		out[k] = struct{}{}
	}
	return out
}

// EffectiveConfigResult is the merged view of file, env and flag values
// that startup hands to the rest of the process.
type EffectiveConfigResult struct {
	Config Config
	Addr   string
	DBPath string
	// Source names the winning layer for addr/db: "flags", "env" or "config".
	Source string
}

// ParseCommandFlags registers and parses the standard server flags and
// reports which ones the user set explicitly.
func ParseCommandFlags() (addr, db, cfgPath string, set map[string]bool) {
	addrFlag := flag.String("addr", ":8080", "listen address")
	dbFlag := flag.String("db", "./data", "path to the data directory")
	cfgFlag := flag.String("config", "", "path to config file")
	flag.Parse()

	set = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return *addrFlag, *dbFlag, *cfgFlag, set
}

// ResolveConfigPath picks the config file path: an explicit flag wins,
// then NOCAFLOW_CONFIG, then ./nocaflow.yaml when present.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet && flagVal != "" {
		return flagVal
	}
	if p := os.Getenv("NOCAFLOW_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("nocaflow.yaml"); err == nil {
		return "nocaflow.yaml"
	}
	return ""
}

// LoadFile parses the YAML config at path into cfg.
func LoadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadEffective merges config file, environment and flags (flags win,
// then env, then file) and returns the effective result.
func LoadEffective(cfgPath, addrFlag, dbFlag string, setFlags map[string]bool) (EffectiveConfigResult, error) {
	var cfg Config
	if cfgPath != "" {
		if err := LoadFile(cfgPath, &cfg); err != nil {
			return EffectiveConfigResult{}, err
		}
	}
	applyEnv(&cfg)

	eff := EffectiveConfigResult{Config: cfg, Source: "config"}

	eff.Addr = cfg.Addr()
	if a := os.Getenv("NOCAFLOW_ADDR"); a != "" {
		eff.Addr = a
		eff.Source = "env"
	}
	if setFlags["addr"] {
		eff.Addr = addrFlag
		eff.Source = "flags"
	}

	eff.DBPath = cfg.Server.DBPath
	if p := os.Getenv("NOCAFLOW_DB_PATH"); p != "" {
		eff.DBPath = p
	}
	if setFlags["db"] || eff.DBPath == "" {
		eff.DBPath = dbFlag
	}
	return eff, nil
}

// Addr renders the server address:port from the file values, defaulting
// to :8080 when nothing is configured.
func (c *Config) Addr() string {
	if c.Server.Address == "" && c.Server.Port == 0 {
		return ":8080"
	}
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(port))
}

// applyEnv overlays NOCAFLOW_* environment variables onto cfg. Only
// values that deployments commonly inject as secrets are supported here;
// everything else belongs in the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("NOCAFLOW_BACKEND_KEYS"); v != "" {
		cfg.Security.APIKeys.Backend = splitList(v)
	}
	if v := os.Getenv("NOCAFLOW_FRONTEND_KEYS"); v != "" {
		cfg.Security.APIKeys.Frontend = splitList(v)
	}
	if v := os.Getenv("NOCAFLOW_ADMIN_KEYS"); v != "" {
		cfg.Security.APIKeys.Admin = splitList(v)
	}
	if v := os.Getenv("NOCAFLOW_MAIL_API_KEY"); v != "" {
		cfg.Mail.APIKey = v
	}
	if v := os.Getenv("NOCAFLOW_MAIL_PROVIDER_URL"); v != "" {
		cfg.Mail.ProviderURL = v
	}
	if v := os.Getenv("NOCAFLOW_BLOB_ACCESS_KEY"); v != "" {
		cfg.Blob.AccessKey = v
	}
	if v := os.Getenv("NOCAFLOW_BLOB_SECRET_KEY"); v != "" {
		cfg.Blob.SecretKey = v
	}
	if v := os.Getenv("NOCAFLOW_BLOB_ENDPOINT"); v != "" {
		cfg.Blob.Endpoint = v
	}
	if v := os.Getenv("NOCAFLOW_LOG_LEVEL"); v != "" && cfg.Logging.Level == "" {
		cfg.Logging.Level = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
