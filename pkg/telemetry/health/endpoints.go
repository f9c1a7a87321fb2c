package health

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// BuildInfo is served by the version endpoint.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Handlers holds the probe endpoints mounted by the API server.
type Handlers struct {
	Liveness  http.HandlerFunc
	Readiness http.HandlerFunc
	Version   http.HandlerFunc
}

// Handlers builds the /health, /ready and /version endpoints.
//
// /ready answers 503 only while a required check (a database) fails. A
// degraded report, such as a stopped sweep scheduler, still answers 200 so
// archive queries keep being routed here.
func (c *Checker) Handlers(info BuildInfo) Handlers {
	info.GoVersion = runtime.Version()
	return Handlers{
		Liveness: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, r, http.StatusOK, c.Liveness())
		},
		Readiness: func(w http.ResponseWriter, r *http.Request) {
			report := c.Readiness(r.Context())
			code := http.StatusOK
			if !report.Serving() {
				code = http.StatusServiceUnavailable
			}
			writeJSON(w, r, code, report)
		},
		Version: func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, r, http.StatusOK, info)
		},
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(body)
	}
}
