package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fnbox/function"
	"fnbox/store"
)

type functionView struct {
	ID          uint           `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func toFunctionView(def *store.FunctionDefinition) functionView {
	return functionView{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Schema:      def.Schema,
		Status:      def.Status,
		CreatedAt:   def.CreatedAt,
		UpdatedAt:   def.UpdatedAt,
	}
}

type versionView struct {
	VersionNumber int       `json:"version_number"`
	Code          string    `json:"code"`
	CreatedAt     time.Time `json:"created_at"`
}

type executionView struct {
	ID            string          `json:"id"`
	VersionNumber int             `json:"version_number"`
	Status        string          `json:"status"`
	Result        json.RawMessage `json:"result,omitempty"`
	ErrorKind     string          `json:"error_kind,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	DurationMs    int64           `json:"duration_ms"`
	PeakMemory    int64           `json:"peak_memory,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}

func toExecutionView(exec *store.FunctionExecution) executionView {
	view := executionView{
		ID:            exec.ID,
		VersionNumber: exec.VersionNumber,
		Status:        exec.Status,
		ErrorKind:     exec.ErrorKind,
		ErrorMessage:  exec.ErrorMessage,
		DurationMs:    exec.DurationMs,
		PeakMemory:    exec.PeakMemory,
		StartedAt:     exec.StartedAt,
		FinishedAt:    exec.FinishedAt,
	}
	if exec.Result != nil {
		view.Result = json.RawMessage(*exec.Result)
	}
	return view
}

type registerRequest struct {
	Name        string         `json:"name"`
	Code        string         `json:"code"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

func (h *Handler) RegisterFunction(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}

	def, err := h.functions.Register(r.Context(), req.Name, req.Code, req.Description, req.Schema)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFunctionView(def))
}

func (h *Handler) ListFunctions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.functions.List(r.Context())
	if err != nil {
		writeFault(w, err)
		return
	}
	views := make([]functionView, 0, len(defs))
	for i := range defs {
		views = append(views, toFunctionView(&defs[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) GetFunction(w http.ResponseWriter, r *http.Request) {
	def, err := h.functions.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFunctionView(def))
}

type updateRequest struct {
	Code        *string        `json:"code"`
	Description *string        `json:"description"`
	Schema      map[string]any `json:"schema"`
}

func (h *Handler) UpdateFunction(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFault(w, err)
		return
	}

	def, err := h.functions.Update(r.Context(), chi.URLParam(r, "name"), function.UpdateRequest{
		Code:        req.Code,
		Description: req.Description,
		Schema:      req.Schema,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFunctionView(def))
}

func (h *Handler) DeactivateFunction(w http.ResponseWriter, r *http.Request) {
	if err := h.functions.Deactivate(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type executeRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// ExecuteFunction runs the latest version. A completed run always answers
// with its ledger row; the status code reflects the outcome.
func (h *Handler) ExecuteFunction(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeFault(w, err)
			return
		}
	}

	exec, err := h.functions.Execute(r.Context(), chi.URLParam(r, "name"), req.Parameters)
	if err != nil {
		writeFault(w, err)
		return
	}

	code := http.StatusOK
	if exec.Status != store.ExecSuccess {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, toExecutionView(exec))
}

func (h *Handler) ListFunctionVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.functions.ListVersions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeFault(w, err)
		return
	}
	views := make([]versionView, 0, len(versions))
	for _, v := range versions {
		views = append(views, versionView{
			VersionNumber: v.VersionNumber,
			Code:          v.Code,
			CreatedAt:     v.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) ListFunctionExecutions(w http.ResponseWriter, r *http.Request) {
	execs, err := h.functions.ListExecutions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeFault(w, err)
		return
	}
	views := make([]executionView, 0, len(execs))
	for i := range execs {
		views = append(views, toExecutionView(&execs[i]))
	}
	writeJSON(w, http.StatusOK, views)
}
