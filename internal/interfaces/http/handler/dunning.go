package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	billingapp "github.com/hausverwaltung/backend/internal/application/billing"
	"github.com/hausverwaltung/backend/internal/domain/billing"
)

// DunningHandler handles dunning assessment API endpoints
type DunningHandler struct {
	BaseHandler
	dunning *billingapp.DunningService
}

// NewDunningHandler creates a new DunningHandler
func NewDunningHandler(dunning *billingapp.DunningService) *DunningHandler {
	return &DunningHandler{
		dunning: dunning,
	}
}

// DunningAssessmentResponse represents one overdue invoice assessment
// @Description Dunning assessment response
type DunningAssessmentResponse struct {
	InvoiceID     string  `json:"invoice_id" example:"550e8400-e29b-41d4-a716-446655440010"`
	InvoiceNumber string  `json:"invoice_number" example:"INV-2026-001"`
	LesseeID      string  `json:"lessee_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Period        string  `json:"period" example:"2026-01"`
	DaysOverdue   int     `json:"days_overdue" example:"21"`
	Level         int     `json:"level" example:"1"`
	Principal     float64 `json:"principal" example:"500.00"`
	Interest      float64 `json:"interest" example:"1.23"`
}

// DunningRunResponse represents the outcome of a dunning run
// @Description Dunning run response
type DunningRunResponse struct {
	Assessments   []DunningAssessmentResponse `json:"assessments"`
	TotalInterest float64                     `json:"total_interest" example:"3.45"`
}

// Run godoc
// @Summary      Run a dunning assessment
// @Description  Assess every overdue invoice of the tenant, computing dunning level and default interest
// @Tags         dunning
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response{data=DunningRunResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/dunning/run [post]
func (h *DunningHandler) Run(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	result, err := h.dunning.Run(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toDunningRunResponse(result))
}

// AssessInvoice godoc
// @Summary      Assess a single invoice
// @Description  Compute dunning level and default interest for one invoice
// @Tags         dunning
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Invoice ID"
// @Success      200 {object} dto.Response{data=DunningAssessmentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/invoices/{id}/dunning [get]
func (h *DunningHandler) AssessInvoice(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	assessment, err := h.dunning.AssessInvoice(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toDunningAssessmentResponse(*assessment))
}

// toDunningRunResponse converts application result to handler response
func toDunningRunResponse(result *billingapp.DunningRunResult) DunningRunResponse {
	return DunningRunResponse{
		Assessments: lo.Map(result.Assessments, func(a billing.DunningAssessment, _ int) DunningAssessmentResponse {
			return toDunningAssessmentResponse(a)
		}),
		TotalInterest: result.TotalInterest.InexactFloat64(),
	}
}

// toDunningAssessmentResponse converts a domain assessment to handler response
func toDunningAssessmentResponse(a billing.DunningAssessment) DunningAssessmentResponse {
	return DunningAssessmentResponse{
		InvoiceID:     a.InvoiceID.String(),
		InvoiceNumber: a.InvoiceNumber,
		LesseeID:      a.LesseeID.String(),
		Period:        a.Period.String(),
		DaysOverdue:   a.DaysOverdue,
		Level:         int(a.Level),
		Principal:     a.Principal.InexactFloat64(),
		Interest:      a.Interest.InexactFloat64(),
	}
}
