package session

import "time"

// Claims carries the identity claims extracted from the verified ID token.
type Claims struct {
	Subject    string
	GivenName  string
	FamilyName string
	Email      string
	Locale     string
	Groups     []string
}

// Session is the server side record an opaque session cookie points at.
// Tokens never leave this record towards the browser.
type Session struct {
	ID          string
	TenantID    string
	ProviderID  string
	Fingerprint string
	CSRFToken   string
	Issuer      string
	Locale      string
	Claims      Claims

	AccessToken       string
	RefreshToken      string
	AccessTokenExpiry time.Time

	Expiry      time.Time
	LastVisited time.Time
}

// State is the short-lived record of an in-flight login. NextPath is the
// sanitized relative path the user is sent to after the callback.
type State struct {
	ID           string
	TenantID     string
	Fingerprint  string
	PKCEVerifier string
	NextPath     string
	Locale       string
	Expiry       time.Time
}

// LoginResult is what the callback handler needs to finish a login.
type LoginResult struct {
	SessionID string
	CSRFToken string
	NextPath  string
	Locale    string
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}
