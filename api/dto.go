/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Template:
    TemplateDTO, ItemDTO, CreateTemplateRequest, AddItemRequest,
    PatchItemRequest, ReorderRequest

  Session:
    SessionDTO, SessionDetailDTO, CreateSessionRequest

  Recording:
    ResponseRequest, BulkSaveRequest, BulkResultDTO, SnapshotDTO, SampleDTO

  Series:
    SeriesDTO, ColumnDTO, TurnRowDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - record/types.go: Domain types these map from
*/
package api

import "encoding/json"

// =============================================================================
// TEMPLATE TYPES
// =============================================================================

// TemplateDTO represents a template in API responses.
type TemplateDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Version   int       `json:"version"`
	CreatedAt string    `json:"created_at,omitempty"`
	Items     []ItemDTO `json:"items,omitempty"`
}

// ItemDTO represents a template item in API responses.
type ItemDTO struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Unit     string `json:"unit,omitempty"`
	Required bool   `json:"required"`
	Weight   string `json:"weight"`
	Order    int    `json:"order"`
}

// CreateTemplateRequest is the request to create a template.
type CreateTemplateRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// AddItemRequest is the request to append an item to a template.
type AddItemRequest struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Kind     string `json:"kind"`
	Unit     string `json:"unit,omitempty"`
	Required bool   `json:"required,omitempty"`
	Weight   string `json:"weight,omitempty"`
}

// PatchItemRequest is a partial item update. Nil fields are left unchanged.
type PatchItemRequest struct {
	Label    *string `json:"label,omitempty"`
	Unit     *string `json:"unit,omitempty"`
	Required *bool   `json:"required,omitempty"`
	Weight   *string `json:"weight,omitempty"`
}

// ReorderRequest assigns a new display order from the id sequence.
type ReorderRequest struct {
	ItemIDs []string `json:"itemIds"`
}

// =============================================================================
// PRODUCT & SESSION TYPES
// =============================================================================

// ProductDTO represents a product in API responses.
type ProductDTO struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Model     string `json:"model,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateProductRequest is the request to create a product.
type CreateProductRequest struct {
	ID    string `json:"id,omitempty"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Model string `json:"model,omitempty"`
}

// SessionDTO represents a session in list responses.
type SessionDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TemplateID string `json:"templateId"`
	ProductID  string `json:"productId,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateSessionRequest is the request to create a session.
type CreateSessionRequest struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	TemplateID string `json:"templateId"`
	ProductID  string `json:"productId,omitempty"`
}

// SessionDetailDTO is a session plus its template items in display order
// and the current value per item.
type SessionDetailDTO struct {
	SessionDTO
	Items     []ItemDTO     `json:"items"`
	Responses []SnapshotDTO `json:"responses"`
}

// =============================================================================
// RECORDING TYPES
// =============================================================================

// ResponseRequest is a single-item save.
type ResponseRequest struct {
	ItemID any    `json:"itemId"`
	Value  any    `json:"value"`
	Note   string `json:"note,omitempty"`
}

// BulkSaveRequest carries one batch of rows. Rows stays nil when the field
// is missing, which the handler rejects before touching storage.
type BulkSaveRequest struct {
	Rows []ResponseRequest `json:"rows"`
}

// BulkResultDTO acknowledges an accepted batch.
type BulkResultDTO struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

// SnapshotDTO is the current value of one item within a session.
type SnapshotDTO struct {
	ItemID    string          `json:"itemId"`
	Value     json.RawMessage `json:"value"`
	Remark    string          `json:"remark,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// SampleDTO is one immutable history entry.
type SampleDTO struct {
	ItemID    string          `json:"itemId"`
	Value     json.RawMessage `json:"value"`
	Remark    string          `json:"remark,omitempty"`
	SampledAt string          `json:"sampled_at"`
}

// =============================================================================
// SERIES TYPES
// =============================================================================

// ColumnDTO describes one series in the reconstructed table.
type ColumnDTO struct {
	ItemID string `json:"itemId"`
	Key    string `json:"key"`
	Label  string `json:"label"`
	Unit   string `json:"unit,omitempty"`
	Kind   string `json:"kind"`
}

// TurnRowDTO is one reconstructed turn. Cells align with the columns;
// null cells are gaps, not zeros.
type TurnRowDTO struct {
	Turn  int        `json:"turn"`
	Cells []*float64 `json:"cells"`
}

// SeriesDTO is the full reconstructed turn table for a session.
type SeriesDTO struct {
	Columns []ColumnDTO  `json:"columns"`
	Rows    []TurnRowDTO `json:"rows"`
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
