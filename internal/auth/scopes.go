package auth

// Scopes understood by the read API.
const (
	ScopeAthletesRead = "athletes:read"
	ScopeRunsRead     = "runs:read"
)
