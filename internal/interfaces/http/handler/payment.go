package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	billingapp "github.com/hausverwaltung/backend/internal/application/billing"
	"github.com/hausverwaltung/backend/internal/domain/billing"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// PaymentHandler handles payment allocation API endpoints
type PaymentHandler struct {
	BaseHandler
	allocations *billingapp.AllocationService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(allocations *billingapp.AllocationService) *PaymentHandler {
	return &PaymentHandler{
		allocations: allocations,
	}
}

// RecordPaymentRequest represents a request to record and allocate a payment
// @Description Request body for recording an incoming payment
type RecordPaymentRequest struct {
	PaymentNumber string  `json:"payment_number" binding:"required,min=1,max=50" example:"PAY-2026-00042"`
	LesseeID      string  `json:"lessee_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Amount        float64 `json:"amount" binding:"required,gt=0" example:"700.00"`
	ReceivedOn    string  `json:"received_on" binding:"required" example:"2026-02-15"`
	Reference     string  `json:"reference" example:"Miete Februar"`
}

// PreviewAllocationRequest represents a request to preview an allocation
// @Description Request body for previewing a payment allocation
type PreviewAllocationRequest struct {
	LesseeID string  `json:"lessee_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Amount   float64 `json:"amount" binding:"required,gt=0" example:"700.00"`
}

// AllocationLineResponse represents one settled invoice in an allocation
// @Description Allocation line response
type AllocationLineResponse struct {
	InvoiceID     string  `json:"invoice_id" example:"550e8400-e29b-41d4-a716-446655440010"`
	InvoiceNumber string  `json:"invoice_number" example:"INV-2026-001"`
	Period        string  `json:"period" example:"2026-01"`
	Amount        float64 `json:"amount" example:"500.00"`
	NewStatus     string  `json:"new_status" example:"PAID"`
}

// AllocationOutcomeResponse represents the result of one allocation run
// @Description Allocation outcome response
type AllocationOutcomeResponse struct {
	Lines        []AllocationLineResponse `json:"lines"`
	TotalApplied float64                  `json:"total_applied" example:"700.00"`
	Unapplied    float64                  `json:"unapplied" example:"0.00"`
}

// RecordPaymentResponse represents a completed payment allocation
// @Description Payment allocation response
type RecordPaymentResponse struct {
	PaymentID string                    `json:"payment_id" example:"550e8400-e29b-41d4-a716-446655440020"`
	Outcome   AllocationOutcomeResponse `json:"outcome"`
	PostingID *string                   `json:"posting_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440030"`
}

// Allocate godoc
// @Summary      Record and allocate a payment
// @Description  Record an incoming payment and allocate it against the lessee's open invoices, oldest period first
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body RecordPaymentRequest true "Payment to record"
// @Success      201 {object} dto.Response{data=RecordPaymentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/payments [post]
func (h *PaymentHandler) Allocate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lesseeID, err := uuid.Parse(req.LesseeID)
	if err != nil {
		h.BadRequest(c, "Invalid lessee ID format")
		return
	}

	receivedOn, err := time.Parse("2006-01-02", req.ReceivedOn)
	if err != nil {
		h.BadRequest(c, "Invalid received_on date, expected YYYY-MM-DD")
		return
	}

	result, err := h.allocations.RecordAndAllocate(c.Request.Context(), billingapp.RecordPaymentRequest{
		TenantID:      tenantID,
		PaymentNumber: req.PaymentNumber,
		LesseeID:      lesseeID,
		Amount:        valueobject.NewMoneyEUR(toDecimal(req.Amount)),
		ReceivedOn:    receivedOn,
		Reference:     req.Reference,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toRecordPaymentResponse(result))
}

// Preview godoc
// @Summary      Preview a payment allocation
// @Description  Compute which invoices an amount would settle without writing anything
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body PreviewAllocationRequest true "Allocation to preview"
// @Success      200 {object} dto.Response{data=AllocationOutcomeResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/payments/preview [post]
func (h *PaymentHandler) Preview(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req PreviewAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lesseeID, err := uuid.Parse(req.LesseeID)
	if err != nil {
		h.BadRequest(c, "Invalid lessee ID format")
		return
	}

	outcome, err := h.allocations.PreviewAllocation(c.Request.Context(), tenantID, lesseeID, valueobject.NewMoneyEUR(toDecimal(req.Amount)))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toAllocationOutcomeResponse(outcome))
}

// toRecordPaymentResponse converts application result to handler response
func toRecordPaymentResponse(result *billingapp.AllocationResult) RecordPaymentResponse {
	resp := RecordPaymentResponse{
		PaymentID: result.PaymentID.String(),
		Outcome:   toAllocationOutcomeResponse(result.Outcome),
	}
	if result.PostingID != nil {
		postingID := result.PostingID.String()
		resp.PostingID = &postingID
	}
	return resp
}

// toAllocationOutcomeResponse converts a domain outcome to handler response
func toAllocationOutcomeResponse(outcome *billing.AllocationOutcome) AllocationOutcomeResponse {
	lines := make([]AllocationLineResponse, len(outcome.Lines))
	for i, line := range outcome.Lines {
		lines[i] = AllocationLineResponse{
			InvoiceID:     line.InvoiceID.String(),
			InvoiceNumber: line.InvoiceNumber,
			Period:        line.Period.String(),
			Amount:        line.Amount.InexactFloat64(),
			NewStatus:     string(line.NewStatus),
		}
	}
	return AllocationOutcomeResponse{
		Lines:        lines,
		TotalApplied: outcome.TotalApplied.InexactFloat64(),
		Unapplied:    outcome.Unapplied.InexactFloat64(),
	}
}
