package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scribeq/internal/api"
	"scribeq/internal/config"
	"scribeq/internal/logging"
	"scribeq/internal/queue"
	"scribeq/internal/services"
	"scribeq/internal/workflow"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/stats", authMiddleware(token, srv.handleStats))
	mux.HandleFunc("/api/health", authMiddleware(token, srv.handleHealth))
	mux.HandleFunc("/api/cleanup", authMiddleware(token, srv.handleCleanup))
	mux.HandleFunc("/api/queue", authMiddleware(token, srv.handleQueue))
	mux.HandleFunc("/api/queue/", authMiddleware(token, srv.handleQueueItem))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Busy:         status.Busy,
		ActiveItemID: status.ActiveItemID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
	})
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := s.daemon.queueSvc.Stats(r.Context(), scopeFromQuery(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStats(stats))
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health, err := s.daemon.DatabaseHealth(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromDatabaseHealth(health))
}

func (s *apiServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	days := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid days value")
			return
		}
		days = parsed
	}
	removed, err := s.daemon.queueSvc.Cleanup(r.Context(), days)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.CleanupResponse{Removed: removed})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listQueue(w, r)
	case http.MethodPost:
		s.enqueueRecording(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) listQueue(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}
	items, err := s.daemon.queueSvc.List(r.Context(), scopeFromQuery(r), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Items: api.FromItems(items)})
}

// enqueueRecording accepts a multipart upload: an "audio" file part plus
// owner, org, priority, urgent, and emergency form fields.
func (s *apiServer) enqueueRecording(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart form expected")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "audio file part required")
		return
	}
	defer file.Close()

	priority := queue.PriorityNormal
	if raw := strings.TrimSpace(r.FormValue("priority")); raw != "" {
		parsed, ok := queue.ParsePriority(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown priority %q", raw))
			return
		}
		priority = parsed
	}

	item, err := s.daemon.orchestrator.EnqueueRecording(r.Context(), workflow.Recording{
		OwnerID:          r.FormValue("owner"),
		OrgID:            r.FormValue("org"),
		Filename:         header.Filename,
		MimeType:         header.Header.Get("Content-Type"),
		Audio:            file,
		Priority:         priority,
		ImmediateUrgency: formBool(r.FormValue("urgent")),
		EmergencyVisit:   formBool(r.FormValue("emergency")),
	})
	if err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.QueueItemResponse{Item: api.FromItem(item)})
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue item id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.describeItem(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.cancelItem(w, r, id)
	case action == "process" && r.Method == http.MethodPost:
		s.processItem(w, r, id)
	case action == "retry" && r.Method == http.MethodPost:
		s.retryItem(w, r, id)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) describeItem(w http.ResponseWriter, r *http.Request, id int64) {
	item, err := s.daemon.queueSvc.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: api.FromItem(item)})
}

func (s *apiServer) cancelItem(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.daemon.orchestrator.CancelRecording(r.Context(), id); err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// processItem kicks off one job in the background. The busy and duplicate
// rejections are synchronous, so the caller gets a definitive answer.
func (s *apiServer) processItem(w http.ResponseWriter, r *http.Request, id int64) {
	var req api.ProcessRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	err := s.daemon.orchestrator.ProcessAsync(r.Context(), id, workflow.SubmissionContext{
		PatientName:     req.PatientName,
		ClinicalContext: req.ClinicalContext,
	})
	if err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.ProcessResponse{ItemID: id, Status: "processing"})
}

func (s *apiServer) retryItem(w http.ResponseWriter, r *http.Request, id int64) {
	item, err := s.daemon.queueSvc.Retry(r.Context(), id)
	if err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueItemResponse{Item: api.FromItem(item)})
}

func scopeFromQuery(r *http.Request) queue.Scope {
	return queue.Scope{
		OwnerID: strings.TrimSpace(r.URL.Query().Get("owner")),
		OrgID:   strings.TrimSpace(r.URL.Query().Get("org")),
	}
}

func formBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrBusy), errors.Is(err, workflow.ErrDuplicate),
		errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrRetryExhausted):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
