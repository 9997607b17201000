// Package config loads dump targets from environment variables and an
// optional config file. Connection URLs are never logged or exposed to tool
// responses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/SedlarDavid/schemadump/internal/db"
)

// Env var names. When any of them is set they define (or override) the
// target with ID DefaultTarget.
const (
	EnvEngine      = "SCHEMADUMP_ENGINE"
	EnvURL         = "SCHEMADUMP_URL"
	EnvMigrations  = "SCHEMADUMP_MIGRATIONS"
	EnvDestination = "SCHEMADUMP_DESTINATION"
	EnvBackend     = "SCHEMADUMP_BACKEND"
	// EnvConfigFile replaces the default config file path.
	EnvConfigFile = "SCHEMADUMP_CONFIG"
)

// DefaultTarget is the ID of the target built from the environment.
const DefaultTarget = "default"

// DefaultConfigDir is the directory for the optional config file.
// Config file path: ~/.schemadump/config.yaml
const DefaultConfigDir = ".schemadump"
const ConfigFileName = "config.yaml"

// Config holds the loaded targets. URLs are stored but never included in
// logs or tool output.
type Config struct {
	targets map[string]targetEntry
}

type targetEntry struct {
	Engine      db.Engine
	Backend     string
	Migrations  string
	Destination string
	url         string
}

// Target is everything needed to run a dump. URL carries credentials; never log it.
type Target struct {
	ID          string
	Engine      db.Engine
	Backend     string
	URL         string
	Migrations  string
	Destination string
}

// TargetInfo is safe to log or return to tools: no URL.
type TargetInfo struct {
	ID          string `json:"id"`
	Engine      string `json:"engine"`
	Backend     string `json:"backend,omitempty"`
	Migrations  string `json:"migrations,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// Load reads $SCHEMADUMP_CONFIG, or ~/.schemadump/config.yaml if present,
// then applies the environment overrides.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigFile)
	if path == "" {
		p, err := configFilePath()
		if err != nil {
			return nil, fmt.Errorf("config path: %w", err)
		}
		path = p
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path (skipped when path is empty) and
// applies the environment overrides. Env vars override file values for the
// default target.
func LoadFile(path string) (*Config, error) {
	c := &Config{targets: make(map[string]targetEntry)}

	// 1) Optional config file (base)
	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	// 2) Env overrides
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func configFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(home, DefaultConfigDir, ConfigFileName)
	_, err = os.Stat(p)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return p, nil
}

type fileFormat struct {
	Targets map[string]fileTarget `yaml:"targets"`
}

type fileTarget struct {
	Engine      string `yaml:"engine"`
	Backend     string `yaml:"backend"`
	URL         string `yaml:"url"`
	Migrations  string `yaml:"migrations"`
	Destination string `yaml:"destination"`
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	// Relative paths in the file are relative to the file itself.
	base := filepath.Dir(path)
	for id, t := range f.Targets {
		engine, err := resolveEngine(t.Engine, t.URL)
		if err != nil {
			return fmt.Errorf("target %q: %w", id, err)
		}
		c.targets[id] = targetEntry{
			Engine:      engine,
			Backend:     t.Backend,
			Migrations:  relativeTo(base, t.Migrations),
			Destination: relativeTo(base, t.Destination),
			url:         t.URL,
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	engine := os.Getenv(EnvEngine)
	url := os.Getenv(EnvURL)
	migrations := os.Getenv(EnvMigrations)
	destination := os.Getenv(EnvDestination)
	backend := os.Getenv(EnvBackend)
	if engine == "" && url == "" && migrations == "" && destination == "" && backend == "" {
		return nil
	}

	e := c.targets[DefaultTarget]
	if url != "" {
		e.url = url
	}
	if migrations != "" {
		e.Migrations = migrations
	}
	if destination != "" {
		e.Destination = destination
	}
	if backend != "" {
		e.Backend = backend
	}
	if engine != "" || url != "" || e.Engine == "" {
		resolved, err := resolveEngine(engine, e.url)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvEngine, err)
		}
		e.Engine = resolved
	}
	c.targets[DefaultTarget] = e
	return nil
}

func resolveEngine(name, url string) (db.Engine, error) {
	if name == "" {
		return db.EngineFromURL(url), nil
	}
	return db.ParseEngine(name)
}

func relativeTo(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// TargetIDs returns all configured target IDs, sorted. Safe to log.
func (c *Config) TargetIDs() []string {
	ids := make([]string, 0, len(c.targets))
	for id := range c.targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TargetInfos returns the safe description of each target, sorted by ID.
func (c *Config) TargetInfos() []TargetInfo {
	infos := make([]TargetInfo, 0, len(c.targets))
	for _, id := range c.TargetIDs() {
		e := c.targets[id]
		infos = append(infos, TargetInfo{
			ID:          id,
			Engine:      string(e.Engine),
			Backend:     e.Backend,
			Migrations:  e.Migrations,
			Destination: e.Destination,
		})
	}
	return infos
}

// Target returns the target with the given ID. For use by the dump layer
// only; never log Target.URL.
func (c *Config) Target(id string) (Target, bool) {
	if c == nil {
		return Target{}, false
	}
	e, ok := c.targets[id]
	if !ok {
		return Target{}, false
	}
	return Target{
		ID:          id,
		Engine:      e.Engine,
		Backend:     e.Backend,
		URL:         e.url,
		Migrations:  e.Migrations,
		Destination: e.Destination,
	}, true
}

// HasTarget returns whether the given target ID is configured.
func (c *Config) HasTarget(id string) bool {
	_, ok := c.targets[id]
	return ok
}
