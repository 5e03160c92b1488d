package oidc

// Provider is the per-tenant OIDC provider registration. Blocked
// providers fail every login and verification for the tenant.
type Provider struct {
	IssuerURL  string
	ClientID   string
	Blocked    bool
	Audiences  []string
	Properties map[string]string
}
