package config

import (
	"fmt"
	"os"
	"strings"
)

// Default configuration values
const (
	DefaultDomain = "localhost:8080"
	DefaultSTUN1  = "stun:stun.l.google.com:19302"
	DefaultSTUN2  = "stun:stun1.l.google.com:19302"
)

// Config holds client configuration
type Config struct {
	// Domain is the signaling server domain (host or host:port)
	Domain string

	// WebSocketURL is constructed from domain unless overridden
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string

	// ForceRelay restricts ICE to relay candidates
	ForceRelay bool

	// AutoMedia acquires microphone and camera on join
	AutoMedia bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	NoMedia    bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := opts.Domain
	if domain == "" {
		domain = os.Getenv("HUDDLE_DOMAIN")
	}
	if domain == "" {
		domain = DefaultDomain
	}

	wsURL := opts.ServerURL
	if wsURL == "" {
		wsURL = os.Getenv("HUDDLE_SERVER_URL")
	}
	if wsURL == "" {
		scheme := "wss"
		if isLoopback(domain) {
			scheme = "ws"
		}
		wsURL = fmt.Sprintf("%s://%s/ws", scheme, domain)
	}

	stunServer := opts.STUNServer
	if stunServer == "" {
		stunServer = os.Getenv("STUN_SERVER")
	}
	stunServers := []string{DefaultSTUN1, DefaultSTUN2}
	if stunServer != "" {
		stunServers = []string{stunServer}
	}

	turnServer := opts.TURNServer
	if turnServer == "" {
		turnServer = os.Getenv("TURN_SERVER")
	}

	turnUser := opts.TURNUser
	if turnUser == "" {
		turnUser = os.Getenv("TURN_USERNAME")
	}

	turnPass := opts.TURNPass
	if turnPass == "" {
		turnPass = os.Getenv("TURN_PASSWORD")
	}

	autoMedia := !opts.NoMedia
	if os.Getenv("HUDDLE_NO_MEDIA") != "" {
		autoMedia = false
	}

	return &Config{
		Domain:       domain,
		WebSocketURL: wsURL,
		STUNServers:  stunServers,
		TURNServer:   turnServer,
		TURNUser:     turnUser,
		TURNPass:     turnPass,
		ForceRelay:   opts.ForceRelay,
		AutoMedia:    autoMedia,
	}, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return c.STUNServers
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func isLoopback(domain string) bool {
	host := domain
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
