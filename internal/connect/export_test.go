package connect

import "golang.org/x/oauth2"

// SetEndpoint points the OAuth client at a test server.
func (s *Service) SetEndpoint(endpoint oauth2.Endpoint) {
	s.oauth.Endpoint = endpoint
}
