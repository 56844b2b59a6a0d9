package enricher

import (
	"time"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

// Observer receives progress events from an Enricher. Implementations must be fast
// and safe for concurrent use.
type Observer interface {
	OnCacheHit(fingerprint string, result domain.EnrichmentResult)
	OnModelFailed(model string, err error, next string)
	OnSuccess(model string, result domain.EnrichmentResult, latency time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnCacheHit(string, domain.EnrichmentResult)               {}
func (nopObserver) OnModelFailed(string, error, string)                      {}
func (nopObserver) OnSuccess(string, domain.EnrichmentResult, time.Duration) {}
