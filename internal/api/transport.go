package api

import (
	"net/http"

	"github.com/google/uuid"
)

// sessionTransport attaches the ambient session credential and a fresh
// request id to every outgoing request.
type sessionTransport struct {
	rt      http.RoundTripper
	session string
}

func (t sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone request to avoid mutating the original
	cl := req.Clone(req.Context())
	if t.session != "" {
		cl.Header.Set("X-Session-ID", t.session)
	}
	cl.Header.Set("X-Request-ID", uuid.NewString())
	if cl.Header.Get("Content-Type") == "" {
		cl.Header.Set("Content-Type", "application/json")
	}
	return t.rt.RoundTrip(cl)
}
