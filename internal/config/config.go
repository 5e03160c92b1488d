// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`
	GRPC GRPCServer `yaml:"grpc"`

	Database       Database       `yaml:"database"`
	ValKey         ValKey         `yaml:"valkey"`
	SessionManager SessionManager `yaml:"sessionManager"`
	Gateway        Gateway        `yaml:"gateway"`
	Connect        Connect        `yaml:"connect"`
	Housekeeper    Housekeeper    `yaml:"housekeeper"`
	Seed           Seed           `yaml:"seed"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

type GRPCServer struct {
	commoncfg.GRPCServer `mapstructure:",squash" yaml:",inline"`

	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

type Database struct {
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
}

type ValKey struct {
	Host      commoncfg.SourceRef `yaml:"host"`
	User      commoncfg.SourceRef `yaml:"user"`
	Password  commoncfg.SourceRef `yaml:"password"`
	SecretRef commoncfg.SecretRef `yaml:"secretRef"`
	Prefix    string              `yaml:"prefix"`
}

type SessionManager struct {
	SessionDuration       time.Duration       `yaml:"sessionDuration" default:"12h"`
	IdleTimeout           time.Duration       `yaml:"idleTimeout" default:"45m"`
	LoginStateDuration    time.Duration       `yaml:"loginStateDuration" default:"10m"`
	DiscoveryCacheTTL     time.Duration       `yaml:"discoveryCacheTTL" default:"5m"`
	RedirectURI           string              `yaml:"redirectURI" default:"https://api.replysuite.dev/auth/callback"`
	CSRFSecret            commoncfg.SourceRef `yaml:"csrfSecret"`
	SessionCookieTemplate CookieTemplate      `yaml:"sessionCookie"`
	CSRFCookieTemplate    CookieTemplate      `yaml:"csrfCookie"`
}

// Gateway controls where users land after authentication. The first
// supported locale is the default.
type Gateway struct {
	Origin           string   `yaml:"origin" default:"https://app.replysuite.dev"`
	SupportedLocales []string `yaml:"supportedLocales"`
	DefaultLanding   string   `yaml:"defaultLanding" default:"/dashboard/home"`
	ErrorPath        string   `yaml:"errorPath" default:"/auth/auth-code-error"`
}

// Connect configures the Google Business Profile OAuth client used to
// link a signed-in user to their Google account.
type Connect struct {
	ClientID     commoncfg.SourceRef `yaml:"clientID"`
	ClientSecret commoncfg.SourceRef `yaml:"clientSecret"`
	RedirectURI  string              `yaml:"redirectURI"`
	Scopes       []string            `yaml:"scopes"`
	StateSecret  commoncfg.SourceRef `yaml:"stateSecret"`
	StateTTL     time.Duration       `yaml:"stateTTL" default:"10m"`
}

type Housekeeper struct {
	Interval      time.Duration `yaml:"interval" default:"5m"`
	RefreshWindow time.Duration `yaml:"refreshWindow" default:"10m"`
}

// Seed points at the YAML file the seed subcommand loads tenant
// provider mappings from.
type Seed struct {
	Path string `yaml:"path" default:"./tenants.yaml"`
}

// Locales returns the configured locales, falling back to English.
func (g Gateway) Locales() []string {
	if len(g.SupportedLocales) == 0 {
		return []string{"en"}
	}
	return g.SupportedLocales
}
