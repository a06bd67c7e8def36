package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	bankingapp "github.com/hausverwaltung/backend/internal/application/banking"
	"github.com/hausverwaltung/backend/internal/domain/banking"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// BankingHandler handles bank transaction and match API endpoints
type BankingHandler struct {
	BaseHandler
	matches    *bankingapp.MatchService
	statements *bankingapp.StatementImportService
}

// NewBankingHandler creates a new BankingHandler
func NewBankingHandler(matches *bankingapp.MatchService, statements *bankingapp.StatementImportService) *BankingHandler {
	return &BankingHandler{
		matches:    matches,
		statements: statements,
	}
}

// ImportTransactionRequest represents a bank statement line to import
// @Description Request body for importing a bank transaction
type ImportTransactionRequest struct {
	Amount          float64 `json:"amount" binding:"required,gt=0" example:"700.00"`
	BookedOn        string  `json:"booked_on" binding:"required" example:"2026-02-15"`
	CounterpartName string  `json:"counterpart_name" binding:"required,min=1,max=200" example:"Max Mustermann"`
	CounterpartIBAN string  `json:"counterpart_iban" binding:"omitempty,max=34" example:"DE89370400440532013000"`
	Purpose         string  `json:"purpose" binding:"omitempty,max=500" example:"Miete Februar INV-2026-002"`
}

// ConfirmMatchRequest represents a user-confirmed transaction/invoice pair
// @Description Request body for confirming a match suggestion
type ConfirmMatchRequest struct {
	TransactionID string `json:"transaction_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440040"`
	InvoiceID     string `json:"invoice_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440010"`
}

// BankTransactionResponse represents a stored bank transaction
// @Description Bank transaction response
type BankTransactionResponse struct {
	ID              string  `json:"id" example:"550e8400-e29b-41d4-a716-446655440040"`
	Amount          float64 `json:"amount" example:"700.00"`
	BookedOn        string  `json:"booked_on" example:"2026-02-15"`
	CounterpartName string  `json:"counterpart_name" example:"Max Mustermann"`
	CounterpartIBAN string  `json:"counterpart_iban" example:"DE89370400440532013000"`
	Purpose         string  `json:"purpose" example:"Miete Februar INV-2026-002"`
	Matched         bool    `json:"matched" example:"false"`
	MatchedLesseeID *string `json:"matched_lessee_id,omitempty"`
	MatchedAt       *string `json:"matched_at,omitempty"`
}

// SuggestionResponse represents one scored match proposal
// @Description Match suggestion response
type SuggestionResponse struct {
	TransactionID string   `json:"transaction_id" example:"550e8400-e29b-41d4-a716-446655440040"`
	InvoiceID     string   `json:"invoice_id" example:"550e8400-e29b-41d4-a716-446655440010"`
	InvoiceNumber string   `json:"invoice_number" example:"INV-2026-002"`
	LesseeID      string   `json:"lessee_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	LesseeName    string   `json:"lessee_name" example:"Max Mustermann"`
	Confidence    float64  `json:"confidence" example:"0.95"`
	Reasons       []string `json:"reasons" example:"exact amount match"`
}

// ConfirmMatchResponse represents a confirmed match and its allocation
// @Description Confirm match response
type ConfirmMatchResponse struct {
	TransactionID string                `json:"transaction_id" example:"550e8400-e29b-41d4-a716-446655440040"`
	Allocation    RecordPaymentResponse `json:"allocation"`
}

// ImportTransaction godoc
// @Summary      Import a bank transaction
// @Description  Store a bank statement line as an unmatched transaction
// @Tags         banking
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body ImportTransactionRequest true "Transaction to import"
// @Success      201 {object} dto.Response{data=BankTransactionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /banking/transactions [post]
func (h *BankingHandler) ImportTransaction(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ImportTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	bookedOn, err := time.Parse("2006-01-02", req.BookedOn)
	if err != nil {
		h.BadRequest(c, "Invalid booked_on date, expected YYYY-MM-DD")
		return
	}

	tx, err := h.matches.ImportTransaction(c.Request.Context(), bankingapp.ImportTransactionRequest{
		TenantID:        tenantID,
		Amount:          valueobject.NewMoneyEUR(toDecimal(req.Amount)),
		BookedOn:        bookedOn,
		CounterpartName: req.CounterpartName,
		CounterpartIBAN: req.CounterpartIBAN,
		Purpose:         req.Purpose,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toBankTransactionResponse(tx))
}

// ImportStatement godoc
// @Summary      Import a bank statement file
// @Description  Parse a CSV statement export and store every line as an unmatched transaction
// @Tags         banking
// @Accept       mpfd
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        file formData file true "Statement CSV file"
// @Success      200 {object} dto.Response{data=bankingapp.StatementImportResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /banking/transactions/import [post]
func (h *BankingHandler) ImportStatement(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	// Accept either a multipart upload or a raw CSV body.
	var reader io.Reader = c.Request.Body
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			h.BadRequest(c, "Cannot read uploaded file")
			return
		}
		defer f.Close()
		reader = f
	}

	result, err := h.statements.Import(c.Request.Context(), tenantID, reader)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// SuggestMatches godoc
// @Summary      List match suggestions
// @Description  Score every unmatched transaction against the tenant's open invoices
// @Tags         banking
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response{data=[]SuggestionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /banking/matches/suggestions [get]
func (h *BankingHandler) SuggestMatches(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	suggestions, err := h.matches.SuggestMatches(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, lo.Map(suggestions, func(s banking.Suggestion, _ int) SuggestionResponse {
		return toSuggestionResponse(s)
	}))
}

// ConfirmMatch godoc
// @Summary      Confirm a match suggestion
// @Description  Link a bank transaction to an invoice and allocate its amount as a payment
// @Tags         banking
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body ConfirmMatchRequest true "Match to confirm"
// @Success      200 {object} dto.Response{data=ConfirmMatchResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /banking/matches/confirm [post]
func (h *BankingHandler) ConfirmMatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ConfirmMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	transactionID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}
	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	result, err := h.matches.ConfirmMatch(c.Request.Context(), bankingapp.ConfirmMatchRequest{
		TenantID:      tenantID,
		TransactionID: transactionID,
		InvoiceID:     invoiceID,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, ConfirmMatchResponse{
		TransactionID: result.TransactionID.String(),
		Allocation:    toRecordPaymentResponse(result.Allocation),
	})
}

// UnlinkMatch godoc
// @Summary      Remove a match link
// @Description  Return a matched transaction to the unmatched pool after a confirmation against the wrong invoice
// @Tags         banking
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Transaction ID"
// @Success      200 {object} dto.Response{data=BankTransactionResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /banking/transactions/{id}/match [delete]
func (h *BankingHandler) UnlinkMatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}

	tx, err := h.matches.Unmatch(c.Request.Context(), tenantID, transactionID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toBankTransactionResponse(tx))
}

// toBankTransactionResponse converts a domain transaction to handler response
func toBankTransactionResponse(tx *banking.BankTransaction) BankTransactionResponse {
	resp := BankTransactionResponse{
		ID:              tx.ID.String(),
		Amount:          tx.Amount.Amount().InexactFloat64(),
		BookedOn:        tx.BookedOn.Format("2006-01-02"),
		CounterpartName: tx.CounterpartName,
		CounterpartIBAN: tx.CounterpartIBAN,
		Purpose:         tx.Purpose,
		Matched:         tx.IsMatched(),
	}
	if tx.MatchedLesseeID != nil {
		lesseeID := tx.MatchedLesseeID.String()
		resp.MatchedLesseeID = &lesseeID
	}
	if tx.MatchedAt != nil {
		matchedAt := tx.MatchedAt.Format(time.RFC3339)
		resp.MatchedAt = &matchedAt
	}
	return resp
}

// toSuggestionResponse converts a domain suggestion to handler response
func toSuggestionResponse(s banking.Suggestion) SuggestionResponse {
	return SuggestionResponse{
		TransactionID: s.TransactionID.String(),
		InvoiceID:     s.InvoiceID.String(),
		InvoiceNumber: s.InvoiceNumber,
		LesseeID:      s.LesseeID.String(),
		LesseeName:    s.LesseeName,
		Confidence:    s.Confidence.InexactFloat64(),
		Reasons:       s.Reasons,
	}
}
