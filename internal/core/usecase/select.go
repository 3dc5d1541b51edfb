package usecase

import (
	"fmt"

	"github.com/docstream/ocrkit/internal/config"
	"github.com/docstream/ocrkit/internal/core/domain"
	"github.com/docstream/ocrkit/internal/infrastructure/provider/docmeta"
)

const localProviderName = "local"

// selectProvider picks the primary provider for one request. OfflineOnly is a
// hard constraint checked before any strategy runs.
func (o *Orchestrator) selectProvider(info docmeta.Info, req domain.Requirements) (string, error) {
	if req.OfflineOnly {
		if o.providerAvailable(localProviderName) {
			return localProviderName, nil
		}
		return "", domain.WrapError(domain.ErrSelection, "select provider",
			fmt.Errorf("offline-only required but local provider not available"))
	}

	available := o.availableProviders()
	if len(available) == 0 {
		return "", domain.WrapError(domain.ErrSelection, "select provider",
			fmt.Errorf("no providers available"))
	}

	switch o.strategy {
	case config.StrategyFastest:
		return o.selectFastest(info, available), nil
	case config.StrategyMostAccurate:
		return o.selectMostAccurate(info, available), nil
	default:
		return o.selectCostOptimized(req, available), nil
	}
}

// selectCostOptimized prefers the free local provider unless the caller asked
// for cloud, then the cheapest available cloud provider.
func (o *Orchestrator) selectCostOptimized(req domain.Requirements, available []string) string {
	if !req.CloudPreferred {
		for _, name := range available {
			if name == localProviderName {
				return name
			}
		}
	}

	best := ""
	bestCost := 0.0
	for _, name := range available {
		if o.registry.descriptor(name).Kind != domain.KindCloud {
			continue
		}
		cost := o.registry.descriptor(name).CostPerRequest
		if best == "" || cost < bestCost {
			best, bestCost = name, cost
		}
	}
	if best != "" {
		return best
	}
	return available[0]
}

// selectFastest sends large inputs to the cloud, assuming more processing
// headroom there, and keeps everything else on the first choice.
func (o *Orchestrator) selectFastest(info docmeta.Info, available []string) string {
	if info.IsLarge {
		for _, name := range available {
			if o.registry.descriptor(name).Kind == domain.KindCloud {
				return name
			}
		}
	}
	return available[0]
}

// selectMostAccurate prefers cloud providers; document-shaped inputs go to
// the structured-document provider when it is configured.
func (o *Orchestrator) selectMostAccurate(info docmeta.Info, available []string) string {
	var clouds []string
	for _, name := range available {
		if o.registry.descriptor(name).Kind == domain.KindCloud {
			clouds = append(clouds, name)
		}
	}
	if len(clouds) == 0 {
		return available[0]
	}
	for _, name := range clouds {
		if name == "google_vision" {
			return name
		}
	}
	if info.IsDocumentShaped {
		for _, name := range clouds {
			if name == "aws_textract" {
				return name
			}
		}
	}
	return clouds[0]
}

func (o *Orchestrator) availableProviders() []string {
	var out []string
	for _, name := range o.registry.FallbackOrder() {
		if o.providerAvailable(name) {
			out = append(out, name)
		}
	}
	return out
}

func (o *Orchestrator) providerAvailable(name string) bool {
	p, ok := o.registry.Provider(name)
	return ok && p.IsAvailable()
}
