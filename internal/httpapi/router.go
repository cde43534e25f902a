package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/metrics"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Router 基于 gorilla/mux，统一加指标中间件
type Router struct {
	mux     *mux.Router
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewRouter(m *metrics.Metrics, logger *zap.Logger) *Router {
	r := &Router{
		mux:     mux.NewRouter(),
		metrics: m,
		logger:  logger,
	}
	r.mux.Use(r.observe)
	r.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok("ok"))
	}).Methods(http.MethodGet)
	return r
}

func (r *Router) Handle(path string, h http.HandlerFunc, methods ...string) {
	r.mux.HandleFunc(path, h).Methods(methods...)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics）
func (r *Router) HandleHandler(path string, h http.Handler) {
	r.mux.Handle(path, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterPatientRoutes 患者相关路由
func (r *Router) RegisterPatientRoutes(h *PatientHandler) {
	r.Handle("/api/v1/patients/{id}/snapshot", h.GetSnapshot, http.MethodGet)
	r.Handle("/api/v1/patients/{id}/vitals", h.PostVitals, http.MethodPost)
	r.Handle("/api/v1/patients/{id}/panic/toggle", h.TogglePanic, http.MethodPost)
	r.Handle("/api/v1/patients/{id}/panic", h.SetPanic, http.MethodPut)
	r.Handle("/api/v1/patients/{id}/episode", h.GetEpisode, http.MethodGet)
	r.Handle("/api/v1/patients/{id}/episodes", h.ListEpisodes, http.MethodGet)
	r.Handle("/api/v1/patients/{id}/caregivers", h.ListCaregivers, http.MethodGet)
	r.Handle("/api/v1/patients/{id}/notes", h.PostNote, http.MethodPost)
	r.Handle("/api/v1/patients/{id}/notes", h.ListNotes, http.MethodGet)
	r.Handle("/api/v1/caregivers/{id}/patients", h.ListLinkedPatients, http.MethodGet)
}

// RegisterUserRoutes 用户登记与推送 token
func (r *Router) RegisterUserRoutes(h *UserHandler) {
	r.Handle("/api/v1/users/{id}", h.PutUser, http.MethodPut)
	r.Handle("/api/v1/users/{id}/tokens", h.PutToken, http.MethodPut)
}

// RegisterPairingRoutes 配对码签发与兑换
func (r *Router) RegisterPairingRoutes(h *PairingHandler) {
	r.Handle("/api/v1/patients/{id}/pairing-code", h.IssueCode, http.MethodPost)
	r.Handle("/api/v1/caregivers/{id}/links", h.Redeem, http.MethodPost)
}

// RegisterLiveRoutes 实时视图（WebSocket）
func (r *Router) RegisterLiveRoutes(h *LiveHandler) {
	r.Handle("/api/v1/patients/{id}/live", h.Live, http.MethodGet)
}

func (r *Router) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		route := "unmatched"
		if cur := mux.CurrentRoute(req); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		r.metrics.ObserveHTTP(route, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Hijack WebSocket 升级需要
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
