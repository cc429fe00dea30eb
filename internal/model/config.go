package model

import (
	"net/url"
	"strings"
)

// ServerConfig locates the home-automation server's REST and event APIs.
type ServerConfig struct {
	Host  string `json:"host" yaml:"host"`
	Token string `json:"-" yaml:"token"`
	SSL   bool   `json:"ssl" yaml:"ssl"`
}

// BaseURL returns the REST root, adding a scheme and the /rest suffix when missing.
func (c ServerConfig) BaseURL() string {
	defaultScheme := "https"
	if !c.SSL {
		defaultScheme = "http"
	}

	raw := strings.TrimSpace(c.Host)
	if raw == "" {
		return defaultScheme + "://localhost:8080/rest"
	}
	if !strings.Contains(raw, "://") {
		raw = defaultScheme + "://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		host := strings.TrimSpace(c.Host)
		host = strings.TrimPrefix(strings.TrimPrefix(host, "http://"), "https://")
		host = strings.Trim(host, "/")
		return defaultScheme + "://" + host + "/rest"
	}

	scheme := strings.TrimSpace(parsed.Scheme)
	if scheme == "" {
		scheme = defaultScheme
	}
	path := strings.TrimSuffix(strings.TrimSpace(parsed.Path), "/")
	switch {
	case path == "", path == "/":
		path = "/rest"
	case strings.HasSuffix(path, "/rest"):
		// Keep an explicit REST path (for example behind reverse proxy).
	default:
		path = path + "/rest"
	}

	return scheme + "://" + parsed.Host + path
}

// EventsURL returns the server-sent events endpoint under the REST root.
func (c ServerConfig) EventsURL() string {
	return c.BaseURL() + "/events"
}
