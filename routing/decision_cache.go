package routing

import (
	"time"

	"github.com/qrouter/core/cache"
)

// DecisionCache is the concrete RoutingDecisionCache from spec §4.2: a
// cache.DecisionCache specialized to Decision, so the generic cache
// package stays free of any dependency on this package's types.
type DecisionCache struct {
	inner *cache.DecisionCache[Decision]
}

// NewDecisionCache creates a routing-decision cache with the given
// capacity/TTL. enabled=false makes Get always miss and Set a no-op.
func NewDecisionCache(maxEntries int, defaultTTL time.Duration, enabled bool) *DecisionCache {
	return &DecisionCache{inner: cache.NewDecisionCache[Decision](maxEntries, defaultTTL, enabled)}
}

func (d *DecisionCache) Get(prompt, contextType, complexityLevel string) (Decision, bool) {
	return d.inner.Get(prompt, contextType, complexityLevel)
}

func (d *DecisionCache) Set(prompt, contextType, complexityLevel string, decision Decision, ttl time.Duration) {
	d.inner.Set(prompt, contextType, complexityLevel, decision, ttl)
}

func (d *DecisionCache) Stats() cache.Stats { return d.inner.Stats() }

func (d *DecisionCache) Handle() cache.Handle { return d.inner.Handle() }
