package lib

import (
	"net/http"
	"strings"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/localization"
)

// FailureResponse is the body JSONFailureHandler writes.
type FailureResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// JSONFailureHandler answers failed challenges with a localized JSON body and
// the status code of the failure kind.
type JSONFailureHandler struct{}

func (JSONFailureHandler) OnFailure(w http.ResponseWriter, r *http.Request, err *challenge.Error) {
	localizer := localization.GetLocalizer(r)

	status := err.StatusCode
	if status == 0 {
		status = err.Kind.StatusCode()
	}

	internal.GetRequestLogger(r).Debug("challenge failed", "err", err)

	challenge.WriteJSON(w, status, FailureResponse{
		Error:   string(err.Kind),
		Type:    string(err.Type),
		Field:   err.Field,
		Message: localizer.Kind(err.Kind),
	})
}

// https://github.com/oauth2-proxy/oauth2-proxy/blob/master/pkg/upstream/http.go#L124
type UnixRoundTripper struct {
	Transport *http.Transport
}

// set bare minimum stuff
func (t UnixRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Host == "" {
		req.Host = "localhost"
	}
	req.URL.Host = req.Host // proxy error: no Host in request URL
	req.URL.Scheme = "http" // make http.Transport happy and avoid an infinite recursion
	return t.Transport.RoundTrip(req)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) stripBasePrefixFromRequest(r *http.Request) *http.Request {
	if !s.opts.StripBasePrefix || s.opts.BasePrefix == "" {
		return r
	}

	basePrefix := strings.TrimSuffix(s.opts.BasePrefix, "/")
	path := r.URL.Path

	if !strings.HasPrefix(path, basePrefix) {
		return r
	}

	trimmedPath := strings.TrimPrefix(path, basePrefix)
	if trimmedPath == "" {
		trimmedPath = "/"
	}

	reqCopy := r.Clone(r.Context())
	urlCopy := *r.URL
	urlCopy.Path = trimmedPath
	urlCopy.RawPath = ""
	reqCopy.URL = &urlCopy

	return reqCopy
}

// ServeHTTPNext hands a request that passed the gate to the protected
// application.
func (s *Server) ServeHTTPNext(w http.ResponseWriter, r *http.Request) {
	if s.next == nil {
		http.NotFound(w, r)
		return
	}

	requestsProxied.WithLabelValues(r.Host).Inc()
	s.next.ServeHTTP(w, s.stripBasePrefixFromRequest(r))
}
