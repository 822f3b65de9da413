// Package types holds the structured error type shared across the routing
// core: Error, ErrorCode, and the constructors routing, caching, and
// execution use to report failures without leaking provider- or
// transport-specific error shapes across package boundaries.
package types
