package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":5001"
	DefaultGraphBaseURL    = "https://graph.microsoft.com/v1.0"
	DefaultLoginBaseURL    = "https://login.microsoftonline.com"
	DefaultGraphScope      = "https://graph.microsoft.com/.default"
	DefaultFallbackDelay   = "2s"
	DefaultResponderName   = "Test Support Agent"
	DefaultSubscriptionTTL = "50m"
	DefaultRenewInterval   = "10m"
)

type Config struct {
	Log          LogConfig          `toml:"log"`
	Server       ServerConfig       `toml:"server"`
	Graph        GraphConfig        `toml:"graph"`
	Support      SupportConfig      `toml:"support"`
	Fallback     FallbackConfig     `toml:"fallback"`
	Subscription SubscriptionConfig `toml:"subscription"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// GraphConfig carries the Microsoft Graph application registration. When
// ClientID or ClientSecret is empty the gateway is not constructed and every
// submission runs in fallback mode.
type GraphConfig struct {
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	BaseURL      string `toml:"base_url"`
	LoginBaseURL string `toml:"login_base_url"`
	Scope        string `toml:"scope"`
}

// Disabled reports whether the Graph gateway cannot be constructed.
func (g GraphConfig) Disabled() bool {
	return g.TenantID == "" || g.ClientID == "" || g.ClientSecret == ""
}

// SupportConfig identifies the support team and the public webhook endpoint.
type SupportConfig struct {
	// TeamMemberEmails are resolved to directory user IDs at startup.
	TeamMemberEmails []string `toml:"team_member_emails"`
	// TeamMemberIDs bypass email resolution when set.
	TeamMemberIDs []string `toml:"team_member_ids"`
	// NotificationURL is the externally reachable /api/notifications URL
	// handed to the subscription API.
	NotificationURL string `toml:"notification_url"`
}

type FallbackConfig struct {
	Delay         string `toml:"delay"`
	ResponderName string `toml:"responder_name"`
}

// DelayDuration returns the parsed fallback delay.
func (f FallbackConfig) DelayDuration() time.Duration {
	d, err := time.ParseDuration(f.Delay)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultFallbackDelay)
	}
	return d
}

// SubscriptionConfig controls change-notification subscriptions. Renewal is
// off unless Renew is set; expired subscriptions then simply go quiet.
type SubscriptionConfig struct {
	TTL           string `toml:"ttl"`
	Renew         bool   `toml:"renew"`
	RenewInterval string `toml:"renew_interval"`
}

// TTLDuration returns the parsed subscription lifetime, capped under the
// one-hour bound the notification API enforces without a lifecycle URL.
func (s SubscriptionConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(s.TTL)
	if err != nil || d <= 0 || d >= time.Hour {
		d, _ = time.ParseDuration(DefaultSubscriptionTTL)
	}
	return d
}

// RenewIntervalDuration returns the parsed renewal cadence.
func (s SubscriptionConfig) RenewIntervalDuration() time.Duration {
	d, err := time.ParseDuration(s.RenewInterval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultRenewInterval)
	}
	return d
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Graph: GraphConfig{
			BaseURL:      DefaultGraphBaseURL,
			LoginBaseURL: DefaultLoginBaseURL,
			Scope:        DefaultGraphScope,
		},
		Fallback: FallbackConfig{
			Delay:         DefaultFallbackDelay,
			ResponderName: DefaultResponderName,
		},
		Subscription: SubscriptionConfig{
			TTL:           DefaultSubscriptionTTL,
			RenewInterval: DefaultRenewInterval,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
