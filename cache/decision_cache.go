package cache

import "time"

// DecisionCache is a typed wrapper over Cache keyed by fingerprint(prompt,
// context_type, complexity_level) (spec §4.2's RoutingDecisionCache). Kept
// generic over V so this package has no dependency on the routing package's
// Decision type; routing.RoutingDecisionCache wraps this with a concrete V.
type DecisionCache[V any] struct {
	c       *Cache[V]
	enabled bool
}

// NewDecisionCache creates a routing-decision cache with the given
// capacity/TTL. enabled=false makes every Get miss and every Set a no-op.
func NewDecisionCache[V any](maxEntries int, defaultTTL time.Duration, enabled bool) *DecisionCache[V] {
	return &DecisionCache[V]{
		c:       New[V]("routing_decision_cache", maxEntries, defaultTTL),
		enabled: enabled,
	}
}

// Get looks up a cached decision for (prompt, contextType, complexityLevel).
func (d *DecisionCache[V]) Get(prompt, contextType, complexityLevel string) (V, bool) {
	if !d.enabled {
		var zero V
		return zero, false
	}
	return d.c.Get(Fingerprint(prompt, contextType, complexityLevel))
}

// Set stores a decision for (prompt, contextType, complexityLevel).
func (d *DecisionCache[V]) Set(prompt, contextType, complexityLevel string, value V, ttl time.Duration) {
	if !d.enabled {
		return
	}
	d.c.Set(Fingerprint(prompt, contextType, complexityLevel), value, ttl)
}

// Stats returns the underlying cache's stats.
func (d *DecisionCache[V]) Stats() Stats { return d.c.Stats() }

// Handle returns the underlying cache for Registry registration.
func (d *DecisionCache[V]) Handle() Handle { return d.c }
