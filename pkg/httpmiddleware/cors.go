package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to make cross-origin requests.
	// Empty, or a single "*" entry, allows every origin.
	AllowOrigins []string

	// AllowMethods lists the HTTP methods clients may use.
	// Defaults to "GET, POST, PUT, DELETE, OPTIONS" when empty.
	AllowMethods []string

	// AllowHeaders lists the request headers clients may send. When empty,
	// preflight requests get their Access-Control-Request-Headers echoed back.
	AllowHeaders []string

	// ExposeHeaders lists response headers scripts may read.
	ExposeHeaders []string

	// AllowCredentials permits cookies and Authorization headers on
	// cross-origin requests. Credentials cannot be combined with a wildcard
	// origin, so enabling this forces per-origin matching.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header; negative sends "0".
	MaxAge int
}

// CORS returns a middleware implementing Cross-Origin Resource Sharing.
// Origin matching is case-insensitive and the configured casing is echoed
// back. Vary headers are set on every origin-dependent response so shared
// caches never serve one origin's response to another.
func CORS(cfg CORSConfig) Middleware {
	c := newCORSHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Same-origin request. Still vary on Origin when matching is
			// per-origin, for the benefit of shared caches.
			if origin == "" {
				if !c.wildcard {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			if isPreflight(r) {
				c.writePreflight(w, r, origin)
				return
			}

			if !c.wildcard {
				w.Header().Add("Vary", "Origin")
			}
			if allow := c.allowOrigin(origin); allow != "" {
				w.Header().Set("Access-Control-Allow-Origin", allow)
				if c.credentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if c.exposeHeaders != "" {
					w.Header().Set("Access-Control-Expose-Headers", c.exposeHeaders)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isPreflight reports whether the request is a CORS preflight: OPTIONS plus
// an Access-Control-Request-Method header.
func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

// corsHeaders holds the precomputed header values shared by all requests.
type corsHeaders struct {
	wildcard      bool
	origins       map[string]string // lowercased origin -> configured casing
	allowMethods  string
	allowHeaders  string
	exposeHeaders string
	maxAge        string
	credentials   bool
}

func newCORSHeaders(cfg CORSConfig) *corsHeaders {
	c := &corsHeaders{
		wildcard:      len(cfg.AllowOrigins) == 0,
		origins:       make(map[string]string, len(cfg.AllowOrigins)),
		allowMethods:  strings.Join(cfg.AllowMethods, ", "),
		allowHeaders:  strings.Join(cfg.AllowHeaders, ", "),
		exposeHeaders: strings.Join(cfg.ExposeHeaders, ", "),
		credentials:   cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			c.wildcard = true
			break
		}
		c.origins[strings.ToLower(o)] = o
	}
	if c.credentials {
		c.wildcard = false
	}
	if c.allowMethods == "" {
		c.allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	switch {
	case cfg.MaxAge > 0:
		c.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		c.maxAge = "0"
	}
	return c
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is not allowed.
func (c *corsHeaders) allowOrigin(origin string) string {
	if c.wildcard {
		return "*"
	}
	return c.origins[strings.ToLower(origin)]
}

func (c *corsHeaders) writePreflight(w http.ResponseWriter, r *http.Request, origin string) {
	h := w.Header()
	h.Add("Vary", "Origin")
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")

	allow := c.allowOrigin(origin)
	if allow == "" {
		// Disallowed origin: answer the preflight without CORS headers.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.Set("Access-Control-Allow-Origin", allow)
	h.Set("Access-Control-Allow-Methods", c.allowMethods)
	if c.allowHeaders != "" {
		h.Set("Access-Control-Allow-Headers", c.allowHeaders)
	} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
		h.Set("Access-Control-Allow-Headers", rh)
	}
	if c.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if c.maxAge != "" {
		h.Set("Access-Control-Max-Age", c.maxAge)
	}
	w.WriteHeader(http.StatusNoContent)
}
