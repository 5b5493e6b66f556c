package ratelimit

// Scope names a family of counters
type Scope string

const (
	// ScopePublic counts unauthenticated requests per client IP
	ScopePublic Scope = "public"
	// ScopeActor counts writes per X-User-ID
	ScopeActor Scope = "actor"
)

// Policy is a fixed-window limit
type Policy struct {
	Scope         Scope
	Limit         int64 // Requests allowed per window
	WindowSeconds int
}

// DefaultWindowSeconds is the counter window used by the portal
const DefaultWindowSeconds = 60

// PublicPolicy limits the verification endpoint
func PublicPolicy(limit int64) Policy {
	return Policy{Scope: ScopePublic, Limit: limit, WindowSeconds: DefaultWindowSeconds}
}

// ActorPolicy limits transitions, filings and draws per actor
func ActorPolicy(limit int64) Policy {
	return Policy{Scope: ScopeActor, Limit: limit, WindowSeconds: DefaultWindowSeconds}
}
