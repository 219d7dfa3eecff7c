package profile

import (
	"fmt"
	"sync"

	"voledge/internal/config"
	"voledge/internal/logger"
	"voledge/internal/types"
)

// Runtime is a compiled profile bound to one or more strategy
// families.
type Runtime struct {
	Definition Definition
}

// Registry maps strategy families to their active profile and
// rebuilds itself on every loader reload. It backs the regime gate's
// profile overrides and the builder's per-family parameter tuning.
type Registry struct {
	mu          sync.RWMutex
	byFamily    map[types.StrategyFamily]*Runtime
	defaultProf *Runtime
}

// NewRegistry builds the registry and subscribes it to loader
// updates. A nil loader yields an empty registry with no overrides.
func NewRegistry(ld *Loader) *Registry {
	r := &Registry{byFamily: make(map[types.StrategyFamily]*Runtime)}
	if ld != nil {
		ld.Subscribe(func(snap Snapshot) {
			r.rebuild(snap)
		})
	}
	return r
}

// Resolve finds the profile bound to a family, falling back to the
// default profile when one is marked.
func (r *Registry) Resolve(family types.StrategyFamily) (*Runtime, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rt, ok := r.byFamily[family]; ok {
		return rt, true
	}
	if r.defaultProf != nil {
		return r.defaultProf, true
	}
	return nil, false
}

// RegimeReasons reports the profile's regime restrictions that the
// given snapshot violates. Satisfies the gate's ProfileSource.
func (r *Registry) RegimeReasons(family types.StrategyFamily, snap types.RegimeSnapshot) []string {
	rt, ok := r.Resolve(family)
	if !ok {
		return nil
	}
	def := rt.Definition
	var reasons []string
	for _, blocked := range def.BlockedVolRegimes {
		if string(snap.VolRegime) == blocked {
			reasons = append(reasons, fmt.Sprintf("profile_blocks_vol_regime_%s", blocked))
		}
	}
	for _, blocked := range def.BlockedCorrRegimes {
		if string(snap.CorrelationRegime) == blocked {
			reasons = append(reasons, fmt.Sprintf("profile_blocks_correlation_regime_%s", blocked))
		}
	}
	if def.RequireRiskOn && snap.RiskAppetite != types.RiskOn {
		reasons = append(reasons, "profile_requires_risk_on")
	}
	return reasons
}

// ApplyBuilder overlays the family's profile params onto a base
// builder config. Unset params keep the base value.
func (r *Registry) ApplyBuilder(family types.StrategyFamily, base config.BuilderConfig) config.BuilderConfig {
	rt, ok := r.Resolve(family)
	if !ok {
		return base
	}
	p := rt.Definition.Params
	if v, ok := floatParam(p, "wing_width"); ok {
		base.CondorWingWidth = v
	}
	if v, ok := floatParam(p, "spread_width"); ok {
		base.SpreadWidth = v
	}
	if v, ok := floatParam(p, "short_delta"); ok {
		base.ShortDelta = v
	}
	if v, ok := floatParam(p, "min_premium"); ok {
		base.MinPremium = v
	}
	return base
}

// DTETarget returns the profile's preferred days-to-expiry for the
// family, if one is set.
func (r *Registry) DTETarget(family types.StrategyFamily) (int, bool) {
	rt, ok := r.Resolve(family)
	if !ok {
		return 0, false
	}
	v, ok := floatParam(rt.Definition.Params, "dte_target")
	if !ok {
		return 0, false
	}
	return int(v), true
}

func (r *Registry) rebuild(snap Snapshot) {
	byFamily := make(map[types.StrategyFamily]*Runtime)
	var defaultRt *Runtime
	for _, def := range snap.Profiles {
		rt := &Runtime{Definition: def}
		if def.Default {
			defaultRt = rt
		}
		for _, fam := range def.Families {
			byFamily[types.StrategyFamily(fam)] = rt
		}
	}
	r.mu.Lock()
	r.byFamily = byFamily
	r.defaultProf = defaultRt
	r.mu.Unlock()
	logger.Infof("[profile] registry rebuilt: %d family bindings (default=%v)", len(byFamily), defaultRt != nil)
}

func floatParam(params map[string]interface{}, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
