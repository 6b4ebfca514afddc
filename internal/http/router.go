package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/domain"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/repository"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/service/auth"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/service/metrics"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/token"
	"github.com/gerrymoeis/proker-tracker-web-sub000/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	auth      auth.Service
	collector *metrics.Collector
	upgrader  websocket.Upgrader
	limiter   RateLimiter
	dbHealth  func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitLogin     = 12
	rateLimitIngest    = 600
	rateLimitDashboard = 120
	rateLimitSync      = 30
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second
	sseHeartbeat       = 25 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, collector *metrics.Collector, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		auth:      authSvc,
		collector: collector,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to the underlying mux through the capture middleware so
// every non-exempt request is observed as a metric.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.capture(r.mux.ServeHTTP)(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.HandleFunc("/auth/login", r.audit(r.withRateLimit("auth_login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/metrics/store", r.audit(r.withRateLimit("metrics_store", rateLimitIngest, rateWindowDefault, rateLimitKeyIP, r.handleStore)))
	r.mux.HandleFunc("/metrics/sync", r.audit(r.withRateLimit("metrics_sync", rateLimitSync, rateWindowDefault, rateLimitKeyIP, r.handleSync)))
	r.mux.HandleFunc("/metrics/stream", r.audit(r.handlerAdminRate("metrics_stream", rateLimitWebsocket, rateWindowRealtime, r.handleStreamSSE)))
	r.mux.HandleFunc("/metrics/prometheus", r.audit(r.handlePrometheus))
	r.mux.HandleFunc("/metrics", r.audit(r.handlerAdminRate("metrics_dashboard", rateLimitDashboard, rateWindowDefault, r.handleDashboard)))
	r.mux.HandleFunc("/ws/metrics", r.audit(r.handlerAdminRate("metrics_ws", rateLimitWebsocket, rateWindowRealtime, r.handleStreamWS)))
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	session, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		r.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    session.User.ID,
			"email": session.User.Email,
			"role":  session.User.Role,
		},
		"token":     session.AccessToken,
		"expiresIn": int(session.ExpiresIn.Seconds()),
	})
}

// handleStore ingests one externally shipped metric with a direct sink write.
// The endpoint carries no authentication so sidecar processes can ship
// metrics, but it is rate limited by source IP and payloads are validated
// before they touch the sink. A sink failure surfaces as 500: the emitter
// holds the metric and retries, so nothing is buffered here.
func (r *Router) handleStore(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var metric domain.Metric
	if err := json.NewDecoder(req.Body).Decode(&metric); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if metric.IPAddress == nil {
		if ip := clientIP(req); ip != "" {
			metric.IPAddress = &ip
		}
	}
	if metric.UserAgent == nil {
		if ua := strings.TrimSpace(req.Header.Get("User-Agent")); ua != "" {
			metric.UserAgent = &ua
		}
	}
	if err := r.collector.Store(req.Context(), metric); err != nil {
		if errors.Is(err, domain.ErrInvalidMetric) || errors.Is(err, repository.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		r.logger.Error("metric store failed", "error", err, "path", metric.Path)
		writeError(w, http.StatusInternalServerError, "failed to store metric")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// handleSync triggers an immediate drain of the volatile buffer. The caller
// must present either an internal system credential scoped to metrics sync or
// an admin session token.
func (r *Router) handleSync(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	bearer, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := r.auth.VerifySystemToken(bearer, token.PurposeMetricsSync); err != nil {
		user, _, authErr := r.auth.Authorize(req.Context(), bearer)
		if authErr != nil || !user.IsAdmin() {
			r.logger.Warn("sync credential rejected", "path", req.URL.Path)
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return
		}
	}
	result, err := r.collector.Drain(req.Context())
	if err != nil {
		r.logger.Error("manual metrics sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "synced",
		"results": result,
	})
}

func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	dashboard, err := r.collector.Dashboard(req.Context())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no metrics recorded")
			return
		}
		r.logger.Error("dashboard query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load metrics")
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (r *Router) handleStreamWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	hub := r.collector.Hub()
	hub.Register(metrics.StreamTopic, client)
	go func() {
		defer func() {
			hub.Unregister(metrics.StreamTopic, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleStreamSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	hub := r.collector.Hub()
	hub.Register(metrics.StreamTopic, client)
	defer func() {
		hub.Unregister(metrics.StreamTopic, client)
		client.Close()
	}()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handlePrometheus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	promhttp.Handler().ServeHTTP(w, req)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	components["buffer"] = map[string]any{
		"status":  "up",
		"pending": r.collector.BufferLen(),
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder, ok := w.(*statusRecorder)
		if !ok {
			recorder = &statusRecorder{ResponseWriter: w}
		}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		} else if req.URL.Path == "/metrics/store" || req.URL.Path == "/metrics/sync" {
			actor = "system"
		}
		fields = append(fields, "actor", actor)

		r.recordRequestMetrics(req.Method, req.URL.Path, status, duration)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
