package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"voledge/internal/logger"
	"voledge/internal/types"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Definition describes a single strategy profile as written in the
// profiles file. Params are validated against the per-family schema
// before the profile is accepted.
type Definition struct {
	Name               string                 `yaml:"-"`
	Families           []string               `yaml:"families"`
	Params             map[string]interface{} `yaml:"params"`
	BlockedVolRegimes  []string               `yaml:"blocked_vol_regimes"`
	BlockedCorrRegimes []string               `yaml:"blocked_correlation_regimes"`
	RequireRiskOn      bool                   `yaml:"require_risk_on"`
	Default            bool                   `yaml:"default"`
}

type fileConfig struct {
	Profiles map[string]Definition `yaml:"profiles"`
}

// Snapshot is a read-only view of the loaded profiles.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]Definition
}

// ChangeListener is invoked on every successful reload.
type ChangeListener func(Snapshot)

// Loader reads profile definitions from a YAML file and watches it
// for changes. A reload that fails validation keeps the previous
// snapshot in place.
type Loader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewLoader parses the file and starts watching for FS events.
func NewLoader(path string) (*Loader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: profile loader requires a path", types.ErrValidation)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profiles failed: %w", err)
	}
	ld := &Loader{path: path, v: v}
	if err := ld.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := ld.reload(); err != nil {
			logger.Errorf("[profile] reload failed (%s): %v", evt.Name, err)
			return
		}
		ld.notify()
	})
	v.WatchConfig()
	return ld, nil
}

// Snapshot returns a deep copy of the current profiles.
func (l *Loader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe registers a listener and immediately delivers the current
// snapshot to it.
func (l *Loader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	fn(snap)
}

func (l *Loader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// reload decodes the file strictly: unknown keys are rejected so a
// typo in a profile name or param surfaces at load time instead of
// silently changing behavior.
func (l *Loader) reload() error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read profiles failed: %w", err)
	}
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	var cfg fileConfig
	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("parse profiles failed: %w", err)
	}
	normalized := make(map[string]Definition, len(cfg.Profiles))
	for name, def := range cfg.Profiles {
		norm, err := normalizeDefinition(name, def)
		if err != nil {
			return fmt.Errorf("profile %s invalid: %w", name, err)
		}
		normalized[name] = norm
	}
	l.mu.Lock()
	l.snapshot = Snapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: normalized,
	}
	l.mu.Unlock()
	logger.Infof("[profile] loaded %d profiles from %s", len(normalized), filepath.Base(l.path))
	return nil
}

func normalizeDefinition(name string, def Definition) (Definition, error) {
	def.Name = name
	def.Families = normalizeFamilies(def.Families)
	if len(def.Families) == 0 && !def.Default {
		return def, fmt.Errorf("%w: no strategy families bound", types.ErrValidation)
	}
	for _, fam := range def.Families {
		if err := validateParams(types.StrategyFamily(fam), def.Params); err != nil {
			return def, err
		}
	}
	if def.Default {
		if err := validateParams("", def.Params); err != nil {
			return def, err
		}
	}
	def.BlockedVolRegimes = normalizeRegimes(def.BlockedVolRegimes)
	def.BlockedCorrRegimes = normalizeRegimes(def.BlockedCorrRegimes)
	return def, nil
}

func normalizeFamilies(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, f := range in {
		norm := strings.ToLower(strings.TrimSpace(f))
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

func normalizeRegimes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		norm := strings.ToLower(strings.TrimSpace(r))
		if norm == "" {
			continue
		}
		out = append(out, norm)
	}
	return out
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Profiles: make(map[string]Definition, len(src.Profiles)),
	}
	for name, def := range src.Profiles {
		dst.Profiles[name] = def
	}
	return dst
}
