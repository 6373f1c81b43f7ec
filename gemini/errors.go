package gemini

import "errors"

var (
	// ErrNotConnected is returned by outbound operations when the socket is
	// not open, either because Open has not completed or because the session
	// has been closed.
	ErrNotConnected = errors.New("gemini: session not connected")

	// ErrMalformedFrame wraps inbound payloads that are not valid JSON or
	// whose audio data is not valid base64.
	ErrMalformedFrame = errors.New("gemini: malformed frame")

	// ErrTransport wraps socket level faults surfaced through ErrorEvent.
	ErrTransport = errors.New("gemini: transport error")

	// ErrSetupPending is returned only by sessions built with
	// WithRequireSetup when a send is attempted before setupComplete.
	ErrSetupPending = errors.New("gemini: setup not acknowledged")

	// ErrMissingAPIKey is returned by Open when the endpoint has no key.
	ErrMissingAPIKey = errors.New("gemini: api key is required")
)
