package monitoring

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthTarget serves a health endpoint that answers 503 until it is ready.
// It stands in for a managed service when exercising launch and readiness.
type HealthTarget struct {
	path   string
	status int
	ready  atomic.Bool
}

func NewHealthTarget(path string, status int) *HealthTarget {
	if path == "" {
		path = "/"
	}
	if status == 0 {
		status = http.StatusOK
	}
	return &HealthTarget{path: path, status: status}
}

func (h *HealthTarget) SetReady() {
	h.ready.Store(true)
}

func (h *HealthTarget) IsReady() bool {
	return h.ready.Load()
}

// ReadyAfter marks the target ready once delay has elapsed
func (h *HealthTarget) ReadyAfter(delay time.Duration) {
	if delay <= 0 {
		h.SetReady()
		return
	}
	time.AfterFunc(delay, h.SetReady)
}

func (h *HealthTarget) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(h.path, func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(h.status)
		fmt.Fprintln(w, `{"result": "ok"}`)
	})
	return mux
}
