package connect

import "time"

// Connection links a signed-in user to the Google account whose Business
// Profile the gateway acts on. One connection per user per tenant.
type Connection struct {
	TenantID     string
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	Scopes       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
