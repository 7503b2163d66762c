package api

import "github.com/okian/sessiontrack/pkg/logger"

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAuth toggles role checks. When disabled every caller acts as a BCBA.
func WithAuth(enabled bool) Option {
	return func(s *Server) {
		s.authEnabled = enabled
	}
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
// "*" allows any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = append([]string(nil), origins...)
	}
}

// WithMetricsEndpoint toggles GET /metrics.
func WithMetricsEndpoint(enabled bool) Option {
	return func(s *Server) {
		s.serveMetrics = enabled
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// WithMaxBodyLength caps request bodies in bytes.
func WithMaxBodyLength(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyLength = n
		}
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
