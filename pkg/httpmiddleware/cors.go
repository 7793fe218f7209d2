package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. Empty or "*" allows any origin.
	AllowOrigins []string
	// AllowMethods defaults to the methods served by the API.
	AllowMethods []string
	// AllowHeaders; when empty the preflight's requested headers are echoed.
	AllowHeaders []string
	// ExposeHeaders lists response headers readable by the browser.
	ExposeHeaders []string
	// AllowCredentials disables the "*" origin: the request origin is echoed.
	AllowCredentials bool
	// MaxAge in seconds for preflight caching. Zero omits the header.
	MaxAge int
}

type cors struct {
	any         bool
	origins     map[string]string // lower-case -> configured spelling
	methods     string
	headers     string
	expose      string
	credentials bool
	maxAge      string
}

func newCORS(cfg CORSConfig) *cors {
	c := &cors{
		origins:     make(map[string]string, len(cfg.AllowOrigins)),
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
		any:         len(cfg.AllowOrigins) == 0,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			c.any = true
			continue
		}
		c.origins[strings.ToLower(o)] = o
	}
	if c.methods == "" {
		c.methods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	if cfg.MaxAge > 0 {
		c.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return c
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin or "".
func (c *cors) allowOrigin(origin string) string {
	if c.any {
		if c.credentials {
			return origin
		}
		return "*"
	}
	return c.origins[strings.ToLower(origin)]
}

// CORS answers preflight requests and decorates cross-origin responses.
func CORS(cfg CORSConfig) Middleware {
	c := newCORS(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if !c.any || c.credentials {
				h.Add("Vary", "Origin")
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allow := c.allowOrigin(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allow != "" {
					h.Set("Access-Control-Allow-Origin", allow)
					h.Set("Access-Control-Allow-Methods", c.methods)
					switch {
					case c.headers != "":
						h.Set("Access-Control-Allow-Headers", c.headers)
					case r.Header.Get("Access-Control-Request-Headers") != "":
						h.Set("Access-Control-Allow-Headers", r.Header.Get("Access-Control-Request-Headers"))
					}
					if c.credentials {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
					if c.maxAge != "" {
						h.Set("Access-Control-Max-Age", c.maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allow != "" {
				h.Set("Access-Control-Allow-Origin", allow)
				if c.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if c.expose != "" {
					h.Set("Access-Control-Expose-Headers", c.expose)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
