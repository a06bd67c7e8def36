package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	eventapp "github.com/hausverwaltung/backend/internal/application/event"
)

// OutboxHandler handles outbox management API endpoints
type OutboxHandler struct {
	BaseHandler
	outbox *eventapp.OutboxService
}

// NewOutboxHandler creates a new OutboxHandler
func NewOutboxHandler(outbox *eventapp.OutboxService) *OutboxHandler {
	return &OutboxHandler{
		outbox: outbox,
	}
}

// OutboxEntryResponse represents an outbox entry
// @Description Outbox entry response
type OutboxEntryResponse struct {
	ID            string  `json:"id" example:"550e8400-e29b-41d4-a716-446655440020"`
	TenantID      string  `json:"tenant_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EventID       string  `json:"event_id" example:"550e8400-e29b-41d4-a716-446655440021"`
	EventType     string  `json:"event_type" example:"billing.invoice.paid"`
	AggregateID   string  `json:"aggregate_id" example:"550e8400-e29b-41d4-a716-446655440010"`
	AggregateType string  `json:"aggregate_type" example:"Invoice"`
	Status        string  `json:"status" example:"DEAD"`
	RetryCount    int     `json:"retry_count" example:"5"`
	MaxRetries    int     `json:"max_retries" example:"5"`
	LastError     string  `json:"last_error,omitempty"`
	NextRetryAt   *string `json:"next_retry_at,omitempty"`
	ProcessedAt   *string `json:"processed_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// OutboxListResponse represents a paginated list of outbox entries
// @Description Paginated outbox entry list
type OutboxListResponse struct {
	Entries    []OutboxEntryResponse `json:"entries"`
	Total      int64                 `json:"total" example:"3"`
	Page       int                   `json:"page" example:"1"`
	PageSize   int                   `json:"page_size" example:"20"`
	TotalPages int                   `json:"total_pages" example:"1"`
}

// OutboxStatsResponse represents outbox delivery statistics
// @Description Outbox statistics response
type OutboxStatsResponse struct {
	Pending    int64 `json:"pending" example:"2"`
	Processing int64 `json:"processing" example:"0"`
	Sent       int64 `json:"sent" example:"120"`
	Failed     int64 `json:"failed" example:"1"`
	Dead       int64 `json:"dead" example:"0"`
	Total      int64 `json:"total" example:"123"`
}

// RetryAllResponse represents the outcome of a bulk retry
// @Description Bulk retry response
type RetryAllResponse struct {
	Count int64 `json:"count" example:"3"`
}

// GetDeadLetterEntries godoc
// @Summary      List dead letter entries
// @Description  Get a paginated list of outbox entries that exhausted their retries
// @Tags         outbox
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=OutboxListResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /system/outbox/dead [get]
func (h *OutboxHandler) GetDeadLetterEntries(c *gin.Context) {
	var filter eventapp.OutboxFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	result, err := h.outbox.GetDeadLetterEntries(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toOutboxListResponse(result))
}

// GetEntry godoc
// @Summary      Get an outbox entry
// @Description  Retrieve a single outbox entry by its ID
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox entry ID"
// @Success      200 {object} dto.Response{data=OutboxEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /system/outbox/{id} [get]
func (h *OutboxHandler) GetEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID format")
		return
	}

	entry, err := h.outbox.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toOutboxEntryResponse(entry))
}

// RetryDeadEntry godoc
// @Summary      Retry a dead letter entry
// @Description  Reset a dead outbox entry so the relay picks it up again
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox entry ID"
// @Success      200 {object} dto.Response{data=OutboxEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /system/outbox/dead/{id}/retry [post]
func (h *OutboxHandler) RetryDeadEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID format")
		return
	}

	entry, err := h.outbox.RetryDeadEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toOutboxEntryResponse(entry))
}

// RetryAllDeadEntries godoc
// @Summary      Retry all dead letter entries
// @Description  Reset every dead outbox entry so the relay picks them up again
// @Tags         outbox
// @Produce      json
// @Success      200 {object} dto.Response{data=RetryAllResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /system/outbox/dead/retry-all [post]
func (h *OutboxHandler) RetryAllDeadEntries(c *gin.Context) {
	count, err := h.outbox.RetryAllDeadEntries(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, RetryAllResponse{Count: count})
}

// GetStats godoc
// @Summary      Get outbox statistics
// @Description  Count outbox entries per delivery status
// @Tags         outbox
// @Produce      json
// @Success      200 {object} dto.Response{data=OutboxStatsResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /system/outbox/stats [get]
func (h *OutboxHandler) GetStats(c *gin.Context) {
	stats, err := h.outbox.GetStats(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toOutboxStatsResponse(stats))
}

func toOutboxEntryResponse(entry *eventapp.OutboxEntryDTO) OutboxEntryResponse {
	resp := OutboxEntryResponse{
		ID:            entry.ID.String(),
		TenantID:      entry.TenantID.String(),
		EventID:       entry.EventID.String(),
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID.String(),
		AggregateType: entry.AggregateType,
		Status:        entry.Status,
		RetryCount:    entry.RetryCount,
		MaxRetries:    entry.MaxRetries,
		LastError:     entry.LastError,
		CreatedAt:     entry.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     entry.UpdatedAt.Format(time.RFC3339),
	}
	if entry.NextRetryAt != nil {
		t := entry.NextRetryAt.Format(time.RFC3339)
		resp.NextRetryAt = &t
	}
	if entry.ProcessedAt != nil {
		t := entry.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &t
	}
	return resp
}

func toOutboxListResponse(result *eventapp.OutboxListResult) OutboxListResponse {
	entries := make([]OutboxEntryResponse, len(result.Entries))
	for i := range result.Entries {
		entries[i] = toOutboxEntryResponse(&result.Entries[i])
	}
	return OutboxListResponse{
		Entries:    entries,
		Total:      result.Total,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalPages: result.TotalPages,
	}
}

func toOutboxStatsResponse(stats *eventapp.OutboxStatsDTO) OutboxStatsResponse {
	return OutboxStatsResponse{
		Pending:    stats.Pending,
		Processing: stats.Processing,
		Sent:       stats.Sent,
		Failed:     stats.Failed,
		Dead:       stats.Dead,
		Total:      stats.Total,
	}
}
