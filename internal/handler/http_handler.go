package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/storeops/be-inspections/internal/auth"
	"github.com/storeops/be-inspections/internal/errors"
	"github.com/storeops/be-inspections/internal/inspection"
	"github.com/storeops/be-inspections/internal/logger"
	"github.com/storeops/be-inspections/internal/service"
)

// HTTPHandler handles HTTP requests for the checklist client and the admin
// dashboard.
type HTTPHandler struct {
	session    *inspection.Session
	taxonomy   *service.TaxonomyService
	inspection *service.InspectionService
	auth       *auth.Manager
	log        *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	session *inspection.Session,
	taxonomy *service.TaxonomyService,
	inspectionSvc *service.InspectionService,
	authMgr *auth.Manager,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		session:    session,
		taxonomy:   taxonomy,
		inspection: inspectionSvc,
		auth:       authMgr,
		log:        log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), errors.HTTPStatus(err))
}

// ── Auth ─────────────────────────────────────────────────────────────────────

// Login handles admin login requests and returns a session token.
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.log.Warn().Str("username", req.Username).Msg("Failed admin login attempt")
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ── Checklist ────────────────────────────────────────────────────────────────

// GetChecklist returns the full taxonomy in display order.
func (h *HTTPHandler) GetChecklist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	categories, err := h.taxonomy.ListChecklist(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// ── Session ──────────────────────────────────────────────────────────────────

// GetSession returns the working state and completion summary.
func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":      h.session.State(),
		"lastError":  h.session.LastError(),
		"storeInfo":  h.session.StoreInfo(),
		"categories": h.session.Categories(),
		"completion": h.session.CompletionStatus(),
	})
}

// UpdateStoreInfo replaces the session's store info.
func (h *HTTPHandler) UpdateStoreInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var info inspection.StoreInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.session.SetStoreInfo(info); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.StoreInfo())
}

// UpdateSessionItem applies a partial update to one working item.
func (h *HTTPHandler) UpdateSessionItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		CategoryID string                `json:"categoryId"`
		ItemID     string                `json:"itemId"`
		Update     inspection.ItemUpdate `json:"update"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CategoryID == "" || req.ItemID == "" {
		http.Error(w, "categoryId and itemId are required", http.StatusBadRequest)
		return
	}

	applied, err := h.session.UpdateItem(req.CategoryID, req.ItemID, req.Update)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"applied":          applied,
		"completion":       h.session.CompletionStatus(),
		"categoryComplete": h.session.IsCategoryComplete(req.CategoryID),
	})
}

// GetSessionIssues returns the working state's flagged issues.
func (h *HTTPHandler) GetSessionIssues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": h.session.Issues()})
}

// ResetSession discards all in-progress state and reloads the taxonomy.
// Confirmation is the client's responsibility.
func (h *HTTPHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.session.Reset(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// SubmitSession validates the working state, writes it once and returns the
// generated inspection ID. Validation failures never reach the write.
func (h *HTTPHandler) SubmitSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := h.session.PrepareSubmission()
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.session.BeginSubmit(); err != nil {
		h.writeError(w, err)
		return
	}

	id, err := h.inspection.Submit(r.Context(), payload)
	if err != nil {
		h.session.MarkSubmitFailed(err)
		h.writeError(w, err)
		return
	}

	if err := h.session.MarkSubmitted(); err != nil {
		// The inspection is durably recorded; a failed draft cleanup only
		// risks a stale restore, which the client resolves by resetting.
		h.log.Warn().Err(err).Str("inspection_id", id).Msg("Failed to clear draft after submission")
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// ── Admin: inspections and issues ────────────────────────────────────────────

// ListInspections returns the most recent inspections.
func (h *HTTPHandler) ListInspections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	inspections, err := h.inspection.ListRecent(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inspections": inspections})
}

// GetInspection returns one inspection by ID.
func (h *HTTPHandler) GetInspection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Inspection ID is required", http.StatusBadRequest)
		return
	}

	insp, err := h.inspection.GetInspection(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

// ListIssues returns the flattened issue dashboard.
func (h *HTTPHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	issues, err := h.inspection.ListIssues(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

// UpdateIssueStatus changes an issue's fixed flag within an inspection.
func (h *HTTPHandler) UpdateIssueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		InspectionID string `json:"inspectionId"`
		CategoryID   string `json:"categoryId"`
		ItemID       string `json:"itemId"`
		Fixed        bool   `json:"fixed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.InspectionID == "" || req.CategoryID == "" || req.ItemID == "" {
		http.Error(w, "inspectionId, categoryId and itemId are required", http.StatusBadRequest)
		return
	}

	if err := h.inspection.UpdateIssueStatus(r.Context(), req.InspectionID, req.CategoryID, req.ItemID, req.Fixed); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ── Admin: taxonomy ──────────────────────────────────────────────────────────

// Categories dispatches category create/update/delete by method.
func (h *HTTPHandler) Categories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createCategory(w, r)
	case http.MethodPut:
		h.updateCategory(w, r)
	case http.MethodDelete:
		h.deleteCategory(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Icon  string `json:"icon"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	category, err := h.taxonomy.CreateCategory(r.Context(), req.Title, req.Icon)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *HTTPHandler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Icon  string `json:"icon"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "Category ID is required", http.StatusBadRequest)
		return
	}

	category, err := h.taxonomy.UpdateCategory(r.Context(), req.ID, req.Title, req.Icon)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *HTTPHandler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Category ID is required", http.StatusBadRequest)
		return
	}

	if err := h.taxonomy.DeleteCategory(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Items dispatches item create/update/delete by method.
func (h *HTTPHandler) Items(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createItem(w, r)
	case http.MethodPut:
		h.updateItem(w, r)
	case http.MethodDelete:
		h.deleteItem(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) createItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID  string `json:"categoryId"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CategoryID == "" {
		http.Error(w, "Category ID is required", http.StatusBadRequest)
		return
	}

	item, err := h.taxonomy.CreateItem(r.Context(), req.CategoryID, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *HTTPHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string `json:"id"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "Item ID is required", http.StatusBadRequest)
		return
	}

	item, err := h.taxonomy.UpdateItem(r.Context(), req.ID, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *HTTPHandler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Item ID is required", http.StatusBadRequest)
		return
	}

	if err := h.taxonomy.DeleteItem(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
