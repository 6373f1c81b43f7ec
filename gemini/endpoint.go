package gemini

import (
	"net/url"
)

const (
	// DefaultHost is the public Gemini API hostname.
	DefaultHost = "generativelanguage.googleapis.com"

	// DefaultPath is the bidirectional generation service path.
	DefaultPath = "google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"
)

// Endpoint identifies the socket a Session connects to.
type Endpoint struct {
	APIKey string
	Host   string // defaults to DefaultHost
	Path   string // defaults to DefaultPath
}

// URL composes wss://<host>/ws/<path>?key=<api key>.
func (e Endpoint) URL() string {
	host := e.Host
	if host == "" {
		host = DefaultHost
	}
	path := e.Path
	if path == "" {
		path = DefaultPath
	}
	return "wss://" + host + "/ws/" + path + "?key=" + url.QueryEscape(e.APIKey)
}

// WebsocketURL is shorthand for Endpoint{APIKey: apiKey}.URL().
func WebsocketURL(apiKey string) string {
	return Endpoint{APIKey: apiKey}.URL()
}
