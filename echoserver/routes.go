package echoserver

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// maxEchoBytes bounds /content bodies.
const maxEchoBytes = 10 << 20

type handlers struct {
	counter  counter
	maxDelay time.Duration
}

func (s *Server) routes() http.Handler {
	h := &handlers{counter: s.counter, maxDelay: s.config.MaxDelay}

	r := chi.NewRouter()
	r.Get("/", h.root)
	r.HandleFunc("/headers", h.headers)
	r.HandleFunc("/content", h.content)
	r.HandleFunc("/query", h.query)
	r.HandleFunc("/delay/{ms}", h.delay)
	r.HandleFunc("/status/{code}", h.status)
	r.HandleFunc("/flaky/{n}", h.flaky)
	r.Get("/livez", s.health.live)
	r.Get("/readyz", s.health.ready)
	if s.config.MetricsHandler != nil {
		r.Handle("/metrics", s.config.MetricsHandler)
	}
	return r
}

func (h *handlers) root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

// headers echoes the request headers, including Host.
func (h *handlers) headers(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]string, len(r.Header)+1)
	for k, v := range r.Header {
		out[k] = v
	}
	out["Host"] = []string{r.Host}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) content(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEchoBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("X-Echo-Method", r.Method)
	_, _ = w.Write(body)
}

func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, r.URL.Query())
}

func (h *handlers) delay(w http.ResponseWriter, r *http.Request) {
	ms, err := strconv.Atoi(chi.URLParam(r, "ms"))
	if err != nil || ms < 0 {
		writeError(w, http.StatusBadRequest, "delay must be a non-negative integer")
		return
	}

	d := min(time.Duration(ms)*time.Millisecond, h.maxDelay)
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		writeJSON(w, http.StatusOK, map[string]int64{"delay_ms": d.Milliseconds()})
	case <-r.Context().Done():
	}
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil || code < 100 || code > 599 {
		writeError(w, http.StatusBadRequest, "status must be between 100 and 599")
		return
	}
	w.WriteHeader(code)
}

// flaky fails with 503 until the key has been called more than n times.
func (h *handlers) flaky(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseInt(chi.URLParam(r, "n"), 10, 64)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "n must be a non-negative integer")
		return
	}

	key := r.Header.Get(flakyKeyHeader)
	if key == "" {
		key = "default"
	}

	calls, err := h.counter.Incr(r.Context(), r.URL.Path+"|"+key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "counter unavailable")
		return
	}

	w.Header().Set("X-Flaky-Attempt", strconv.FormatInt(calls, 10))
	if calls <= n {
		writeError(w, http.StatusServiceUnavailable, "flaky failure")
		return
	}
	_, _ = io.WriteString(w, "ok")
}
