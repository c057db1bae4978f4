/*
handlers.go - HTTP API handlers for the evaluation recording system

PURPOSE:
  Exposes the recording engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Templates:
    GET    /api/templates                  List templates
    POST   /api/templates                  Create template
    GET    /api/templates/{id}            Template + items in display order
    POST   /api/templates/{id}/items      Append item
    PATCH  /api/templates/{id}/reorder    Reassign display order
    PATCH  /api/templates/items/{itemId}  Partial item update
    DELETE /api/templates/items/{itemId}  Delete item

  Sessions & recording:
    GET    /api/sessions                  List sessions
    POST   /api/sessions                  Create session
    GET    /api/sessions/{id}             Session + items + current values
    POST   /api/sessions/{id}/response    Single-item save (one-row batch)
    POST   /api/sessions/{id}/bulk-save   Batch save
    GET    /api/sessions/{id}/timeseries  Raw sample history
    GET    /api/sessions/{id}/series      Reconstructed turn table

  Export:
    GET    /api/export/sessions/{id}/csv  Current values as CSV

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Recorder: Transactional batch application

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input (detected before storage)
  - 404: Resource not found
  - 409: Conflict (constraint violation, with constraint detail)
  - 500: Storage errors
  No automatic retry, no partial success: a failed batch leaves no trace.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loader
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/eval-engine/record"
	"github.com/warp/eval-engine/store/sqlite"
)

// apiTimeLayout keeps the millisecond precision the store records, so two
// samples from one batch serialize with identical timestamps.
const apiTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Recorder *record.Recorder
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:    store,
		Recorder: record.NewRecorder(store),
	}
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

// ListTemplates returns all templates, newest first.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Store.ListTemplates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates", err)
		return
	}

	dtos := make([]TemplateDTO, len(templates))
	for i, tpl := range templates {
		dtos[i] = toTemplateDTO(tpl, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTemplate creates a new, empty template.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	tpl := sqlite.Template{
		ID:      req.ID,
		Name:    req.Name,
		Status:  "ACTIVE",
		Version: 1,
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}

	if err := h.Store.SaveTemplate(r.Context(), tpl); err != nil {
		writeStoreError(w, "Failed to create template", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateDTO(tpl, nil))
}

// GetTemplate returns a template with its items in display order.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	tpl, err := h.Store.GetTemplate(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get template", err)
		return
	}
	if tpl == nil {
		writeError(w, http.StatusNotFound, "Template not found", nil)
		return
	}

	items, err := h.Store.ListItems(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(*tpl, items))
}

// AddItem appends an item to a template, after all existing items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "id")
	ctx := r.Context()

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	key := strings.TrimSpace(req.Key)
	if key == "" || strings.TrimSpace(req.Label) == "" {
		writeError(w, http.StatusBadRequest, "key and label are required", nil)
		return
	}
	kind := record.ItemKind(strings.ToUpper(strings.TrimSpace(req.Kind)))
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unknown kind %q (want NUMBER, TEXT or BOOL)", req.Kind), nil)
		return
	}

	weight := decimal.NewFromInt(1)
	if req.Weight != "" {
		var err error
		weight, err = decimal.NewFromString(req.Weight)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid weight", err)
			return
		}
	}

	tpl, err := h.Store.GetTemplate(ctx, templateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get template", err)
		return
	}
	if tpl == nil {
		writeError(w, http.StatusNotFound, "Template not found", nil)
		return
	}

	order, err := h.Store.NextItemOrder(ctx, templateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to assign item order", err)
		return
	}

	item := record.Item{
		ID:         uuid.NewString(),
		TemplateID: templateID,
		Key:        key,
		Label:      req.Label,
		Kind:       kind,
		Unit:       req.Unit,
		Required:   req.Required,
		Weight:     weight,
		Order:      order,
	}
	if err := h.Store.SaveItem(ctx, item); err != nil {
		writeStoreError(w, "Failed to add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemDTO(item))
}

// ReorderItems reassigns display order 1..N following the request sequence.
func (h *Handler) ReorderItems(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "id")
	ctx := r.Context()

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "itemIds must be a non-empty array", nil)
		return
	}

	if err := h.Store.ReorderItems(ctx, templateID, req.ItemIDs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusBadRequest, "itemIds contains an unknown item", err)
			return
		}
		writeStoreError(w, "Failed to reorder items", err)
		return
	}

	items, err := h.Store.ListItems(ctx, templateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTOs(items))
}

// PatchItem applies a partial update to an item.
func (h *Handler) PatchItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	ctx := r.Context()

	var req PatchItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	item, err := h.Store.GetItem(ctx, itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "Item not found", nil)
		return
	}

	if req.Label != nil {
		item.Label = *req.Label
	}
	if req.Unit != nil {
		item.Unit = *req.Unit
	}
	if req.Required != nil {
		item.Required = *req.Required
	}
	if req.Weight != nil {
		weight, err := decimal.NewFromString(*req.Weight)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid weight", err)
			return
		}
		item.Weight = weight
	}

	if err := h.Store.SaveItem(ctx, *item); err != nil {
		writeStoreError(w, "Failed to update item", err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(*item))
}

// DeleteItem removes an item from its template.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	if err := h.Store.DeleteItem(r.Context(), itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Item not found", nil)
			return
		}
		writeStoreError(w, "Failed to delete item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns all products, newest first.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = ProductDTO{
			ID:        p.ID,
			Code:      p.Code,
			Name:      p.Name,
			Model:     p.Model,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProduct creates a new product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "code and name are required", nil)
		return
	}

	p := sqlite.Product{ID: req.ID, Code: req.Code, Name: req.Name, Model: req.Model}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	if err := h.Store.SaveProduct(r.Context(), p); err != nil {
		writeStoreError(w, "Failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, ProductDTO{ID: p.ID, Code: p.Code, Name: p.Name, Model: p.Model})
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// ListSessions returns all sessions, newest first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Store.ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}

	dtos := make([]SessionDTO, len(sessions))
	for i, sess := range sessions {
		dtos[i] = toSessionDTO(sess)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSession creates a recording session against one template.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.TemplateID) == "" {
		writeError(w, http.StatusBadRequest, "name and templateId are required", nil)
		return
	}

	tpl, err := h.Store.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get template", err)
		return
	}
	if tpl == nil {
		writeError(w, http.StatusBadRequest, "templateId references no template", nil)
		return
	}

	sess := sqlite.Session{ID: req.ID, Name: req.Name, TemplateID: req.TemplateID, ProductID: req.ProductID}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}

	if err := h.Store.SaveSession(ctx, sess); err != nil {
		writeStoreError(w, "Failed to create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(sess))
}

// GetSession returns a session with its template items in display order and
// the current value per item.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	sess, err := h.Store.GetSession(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get session", err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return
	}

	items, err := h.Store.ListItems(ctx, sess.TemplateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}
	snapshots, err := h.Recorder.CurrentValues(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read current values", err)
		return
	}

	detail := SessionDetailDTO{
		SessionDTO: toSessionDTO(*sess),
		Items:      toItemDTOs(items),
		Responses:  make([]SnapshotDTO, len(snapshots)),
	}
	for i, snap := range snapshots {
		detail.Responses[i] = SnapshotDTO{
			ItemID:    snap.ItemID,
			Value:     snap.Value,
			Remark:    snap.Remark,
			CreatedAt: snap.CreatedAt.Format(apiTimeLayout),
			UpdatedAt: snap.UpdatedAt.Format(apiTimeLayout),
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

// =============================================================================
// RECORDING HANDLERS
// =============================================================================

// SaveResponse saves a single item value. It runs through the recorder as a
// one-row batch, so the history stays complete.
func (h *Handler) SaveResponse(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := r.Context()

	var req ResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if missing := h.requireSession(ctx, w, sessionID); missing {
		return
	}

	count, err := h.Recorder.ApplyBatch(ctx, sessionID, []record.RawRow{
		{ItemID: req.ItemID, Value: req.Value, Note: req.Note},
	})
	if err != nil {
		writeRecordError(w, err)
		return
	}
	if count == 0 {
		writeError(w, http.StatusBadRequest, "itemId is required", nil)
		return
	}
	writeJSON(w, http.StatusOK, BulkResultDTO{OK: true, Count: count})
}

// BulkSave applies one batch of rows atomically: every row's current value
// and one history sample per row, all sharing a single batch timestamp.
func (h *Handler) BulkSave(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := r.Context()

	var req BulkSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Also covers a non-array "rows" value
		writeError(w, http.StatusBadRequest, "rows must be an array", err)
		return
	}
	if req.Rows == nil {
		writeError(w, http.StatusBadRequest, "rows must be an array", nil)
		return
	}

	if missing := h.requireSession(ctx, w, sessionID); missing {
		return
	}

	raw := make([]record.RawRow, len(req.Rows))
	for i, row := range req.Rows {
		raw[i] = record.RawRow{ItemID: row.ItemID, Value: row.Value, Note: row.Note}
	}

	count, err := h.Recorder.ApplyBatch(ctx, sessionID, raw)
	if err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BulkResultDTO{OK: true, Count: count})
}

// GetTimeseries returns the raw sample history, ordered by timestamp
// ascending. No reconstruction, no coercion.
func (h *Handler) GetTimeseries(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := r.Context()

	if missing := h.requireSession(ctx, w, sessionID); missing {
		return
	}

	samples, err := h.Recorder.History(ctx, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read history", err)
		return
	}

	dtos := make([]SampleDTO, len(samples))
	for i, sample := range samples {
		dtos[i] = SampleDTO{
			ItemID:    sample.ItemID,
			Value:     sample.Value,
			Remark:    sample.Remark,
			SampledAt: sample.SampledAt.Format(apiTimeLayout),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSeries returns the reconstructed turn table: one column per template
// item in display order, one row per batch, null cells for gaps.
func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := r.Context()

	sess, err := h.Store.GetSession(ctx, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get session", err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return
	}

	items, err := h.Store.ListItems(ctx, sess.TemplateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}
	samples, err := h.Recorder.History(ctx, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read history", err)
		return
	}

	table := record.Reconstruct(items, samples)

	dto := SeriesDTO{
		Columns: make([]ColumnDTO, len(table.Columns)),
		Rows:    make([]TurnRowDTO, len(table.Rows)),
	}
	for i, col := range table.Columns {
		dto.Columns[i] = ColumnDTO{
			ItemID: col.ItemID,
			Key:    col.Key,
			Label:  col.Label,
			Unit:   col.Unit,
			Kind:   string(col.Kind),
		}
	}
	for i, row := range table.Rows {
		dto.Rows[i] = TurnRowDTO{Turn: row.Turn, Cells: row.Cells}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// EXPORT HANDLERS
// =============================================================================

// ExportSessionCSV writes the current values as CSV, one row per template
// item in display order. Items never answered export with empty cells.
func (h *Handler) ExportSessionCSV(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ctx := r.Context()

	sess, err := h.Store.GetSession(ctx, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get session", err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return
	}

	items, err := h.Store.ListItems(ctx, sess.TemplateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list items", err)
		return
	}
	snapshots, err := h.Recorder.CurrentValues(ctx, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read current values", err)
		return
	}

	byItem := make(map[string]record.Snapshot, len(snapshots))
	for _, snap := range snapshots {
		byItem[snap.ItemID] = snap
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="session-%s.csv"`, sessionID))

	cw := csv.NewWriter(w)
	cw.Write([]string{"itemId", "label", "key", "kind", "value", "remark"})
	for _, item := range items {
		value, remark := "", ""
		if snap, ok := byItem[item.ID]; ok {
			value = record.Coerce(item.Kind, snap.Value).Display()
			remark = snap.Remark
		}
		cw.Write([]string{item.ID, item.Label, item.Key, string(item.Kind), value, remark})
	}
	cw.Flush()
}

// =============================================================================
// HELPERS
// =============================================================================

// requireSession writes a 404/500 and reports true when the session is
// unavailable.
func (h *Handler) requireSession(ctx context.Context, w http.ResponseWriter, sessionID string) bool {
	sess, err := h.Store.GetSession(ctx, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get session", err)
		return true
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "Session not found", nil)
		return true
	}
	return false
}

func toTemplateDTO(tpl sqlite.Template, items []record.Item) TemplateDTO {
	dto := TemplateDTO{
		ID:      tpl.ID,
		Name:    tpl.Name,
		Status:  tpl.Status,
		Version: tpl.Version,
	}
	if !tpl.CreatedAt.IsZero() {
		dto.CreatedAt = tpl.CreatedAt.Format(time.RFC3339)
	}
	if items != nil {
		dto.Items = toItemDTOs(items)
	}
	return dto
}

func toItemDTO(item record.Item) ItemDTO {
	return ItemDTO{
		ID:       item.ID,
		Key:      item.Key,
		Label:    item.Label,
		Kind:     string(item.Kind),
		Unit:     item.Unit,
		Required: item.Required,
		Weight:   item.Weight.String(),
		Order:    item.Order,
	}
}

func toItemDTOs(items []record.Item) []ItemDTO {
	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	return dtos
}

func toSessionDTO(sess sqlite.Session) SessionDTO {
	dto := SessionDTO{
		ID:         sess.ID,
		Name:       sess.Name,
		TemplateID: sess.TemplateID,
		ProductID:  sess.ProductID,
	}
	if !sess.CreatedAt.IsZero() {
		dto.CreatedAt = sess.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeRecordError maps recorder failures onto the error taxonomy:
// invalid input 400, constraint conflict 409 with detail, storage 500.
func writeRecordError(w http.ResponseWriter, err error) {
	var conflict *record.ConflictError
	switch {
	case errors.Is(err, record.ErrInvalidBatch):
		writeError(w, http.StatusBadRequest, "Invalid batch", err)
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "Conflict: "+conflict.Constraint, err)
	default:
		writeError(w, http.StatusInternalServerError, "Failed to save batch", err)
	}
}

// writeStoreError maps direct store failures the same way.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	var conflict *record.ConflictError
	if errors.As(err, &conflict) {
		writeError(w, http.StatusConflict, "Conflict: "+conflict.Constraint, err)
		return
	}
	writeError(w, http.StatusInternalServerError, message, err)
}
