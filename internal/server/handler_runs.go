package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/me/vmbroker/internal/logging"
	"github.com/me/vmbroker/internal/sim"
	"github.com/me/vmbroker/internal/workflow"
	"github.com/me/vmbroker/pkg/model"
)

// createRunRequest is the body of POST /runs. Optional fields override the
// server's configured billing policy and duration expression for one run.
type createRunRequest struct {
	Name                   string   `json:"name"`
	Format                 string   `json:"format"`
	Workflow               string   `json:"workflow"`
	RatePerSecond          *float64 `json:"rate_per_second"`
	MinimumBillableSeconds *float64 `json:"minimum_billable_seconds"`
	DurationExpr           *string  `json:"duration_expr"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req createRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWorkflowBytes)).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	var details []model.FieldError
	if req.Workflow == "" {
		details = append(details, model.FieldError{Field: "workflow", Message: "workflow is required"})
	}
	if req.Format == "" {
		details = append(details, model.FieldError{Field: "format", Message: "format is required"})
	}
	if req.RatePerSecond != nil && *req.RatePerSecond < 0 {
		details = append(details, model.FieldError{Field: "rate_per_second", Message: "must be non-negative"})
	}
	if req.MinimumBillableSeconds != nil && *req.MinimumBillableSeconds < 0 {
		details = append(details, model.FieldError{Field: "minimum_billable_seconds", Message: "must be non-negative"})
	}
	if len(details) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid run request", details...))
		return
	}

	format, err := workflow.ParseFormat(req.Format)
	if err != nil {
		respondInvalid(w, reqID, "unsupported format", "format", err)
		return
	}
	name := req.Name
	if name == "" {
		name = "workflow"
	}
	wf, err := workflow.Parse([]byte(req.Workflow), format, name)
	if err != nil {
		respondInvalid(w, reqID, "invalid workflow", "workflow", err)
		return
	}
	if req.Name != "" {
		wf.Name = req.Name
	}

	bcfg := s.config.BrokerOptions()
	if req.RatePerSecond != nil {
		bcfg.Billing.RatePerSecond = *req.RatePerSecond
	}
	if req.MinimumBillableSeconds != nil {
		bcfg.Billing.MinimumBillableSeconds = *req.MinimumBillableSeconds
	}
	scfg := s.config.SimOptions()
	if req.DurationExpr != nil {
		scfg.DurationExpr = *req.DurationExpr
	}

	id := "run_" + uuid.New().String()
	logger := logging.ForRun(loggerFromContext(r.Context(), s.logger), id, wf.Name)

	run, err := sim.Simulate(r.Context(), wf, bcfg, scfg, logger)
	if err != nil {
		logger.Warn("simulation failed", "error", err)
		respondError(w, reqID, http.StatusUnprocessableEntity, &model.APIError{
			Code:    model.ErrValidation,
			Message: "simulation failed: " + err.Error(),
		})
		return
	}
	run.ID = id
	run.CreatedAt = time.Now().UTC()

	if err := s.store.CreateRun(r.Context(), run); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	logger.Info("run stored", "tasks", run.TaskCount, "completed", run.CompletedTasks,
		"cost", run.Report.Total)
	respondCreated(w, reqID, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, err := parseListOptions(r)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, err)
		return
	}

	runs, total, listErr := s.store.ListRuns(r.Context(), opts)
	if listErr != nil {
		respondInternal(w, reqID, listErr)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}

	opts.Clamp()
	respondList(w, reqID, runs, model.NewPagination(total, opts))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	if err := s.store.DeleteRun(r.Context(), id); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": id, "deleted": "true"})
}

// parseListOptions reads limit, offset, and state query parameters.
func parseListOptions(r *http.Request) (model.ListOptions, *model.APIError) {
	opts := model.DefaultListOptions()
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, model.NewValidationError("invalid query parameter",
				model.FieldError{Field: "limit", Message: "must be an integer"})
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, model.NewValidationError("invalid query parameter",
				model.FieldError{Field: "offset", Message: "must be an integer"})
		}
		opts.Offset = n
	}
	opts.State = q.Get("state")
	return opts, nil
}

func (s *Server) probeOptions() model.ListOptions {
	return model.ListOptions{Limit: 1}
}
