package regime

import (
	"context"
	"sync"
	"time"

	"voledge/internal/types"
)

const snapshotTTL = 30 * time.Second

// InputSource supplies the raw observations a classification needs.
type InputSource interface {
	RegimeInputs(ctx context.Context) (Inputs, error)
}

// Provider caches classifications so repeated gate evaluations within
// a short window do not re-fetch market data.
type Provider struct {
	classifier *Classifier
	source     InputSource
	now        func() time.Time

	mu        sync.Mutex
	cached    types.RegimeSnapshot
	cachedAt  time.Time
	haveCache bool
}

func NewProvider(classifier *Classifier, source InputSource) *Provider {
	return &Provider{classifier: classifier, source: source, now: time.Now}
}

// CurrentRegime returns the cached snapshot when fresh, otherwise
// fetches inputs and reclassifies.
func (p *Provider) CurrentRegime(ctx context.Context) (types.RegimeSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.haveCache && p.now().Sub(p.cachedAt) < snapshotTTL {
		return p.cached, nil
	}

	in, err := p.source.RegimeInputs(ctx)
	if err != nil {
		return types.RegimeSnapshot{}, err
	}
	snap, err := p.classifier.Classify(in)
	if err != nil {
		return types.RegimeSnapshot{}, err
	}
	p.cached = snap
	p.cachedAt = p.now()
	p.haveCache = true
	return snap, nil
}
