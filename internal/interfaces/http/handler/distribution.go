package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	distributionapp "github.com/hausverwaltung/backend/internal/application/distribution"
	"github.com/hausverwaltung/backend/internal/domain/distribution"
	"github.com/hausverwaltung/backend/internal/domain/shared"
	"github.com/hausverwaltung/backend/internal/domain/shared/valueobject"
)

// DistributionHandler handles cost distribution API endpoints
type DistributionHandler struct {
	BaseHandler
	distributions *distributionapp.Service
}

// NewDistributionHandler creates a new DistributionHandler
func NewDistributionHandler(distributions *distributionapp.Service) *DistributionHandler {
	return &DistributionHandler{
		distributions: distributions,
	}
}

// ParticipantRequest represents one cost-bearing party in a run
// @Description Participant in a distribution run
type ParticipantRequest struct {
	ID     string  `json:"id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440050"`
	Name   string  `json:"name" binding:"required,min=1,max=200" example:"Wohnung 1 OG links"`
	Weight float64 `json:"weight" binding:"min=0" example:"72.5"`
}

// CostItemRequest represents one cost position to distribute
// @Description Cost item in a distribution run
type CostItemRequest struct {
	Description    string  `json:"description" binding:"required,min=1,max=200" example:"Gebäudeversicherung 2026"`
	Amount         float64 `json:"amount" binding:"required,gt=0" example:"2400.00"`
	Key            string  `json:"key" binding:"required" example:"AREA"`
	TaxRatePercent float64 `json:"tax_rate_percent" binding:"min=0" example:"19"`
	ReserveAnnual  float64 `json:"reserve_annual" binding:"min=0" example:"1200.00"`
	Monthly        bool    `json:"monthly" example:"false"`
}

// DistributionRunRequest represents a settlement run over a participant set
// @Description Request body for a distribution run
type DistributionRunRequest struct {
	Items        []CostItemRequest    `json:"items" binding:"required,min=1,dive"`
	Participants []ParticipantRequest `json:"participants" binding:"required,min=1,dive"`
}

// DistributionPreviewRequest represents a single-item dry run
// @Description Request body for a distribution preview
type DistributionPreviewRequest struct {
	Item         CostItemRequest      `json:"item" binding:"required"`
	Participants []ParticipantRequest `json:"participants" binding:"required,min=1,dive"`
}

// ResultLineResponse represents one participant's share
// @Description Distribution result line
type ResultLineResponse struct {
	ParticipantID   string  `json:"participant_id" example:"550e8400-e29b-41d4-a716-446655440050"`
	ParticipantName string  `json:"participant_name" example:"Wohnung 1 OG links"`
	Weight          float64 `json:"weight" example:"72.5"`
	NetShare        float64 `json:"net_share" example:"816.33"`
	TaxShare        float64 `json:"tax_share" example:"155.10"`
	ReserveShare    float64 `json:"reserve_share" example:"408.16"`
	GrossShare      float64 `json:"gross_share" example:"1379.59"`
	Provisional     bool    `json:"provisional" example:"false"`
}

// DistributionResultResponse represents one item's computed distribution
// @Description Distribution result
type DistributionResultResponse struct {
	Key          string               `json:"key" example:"AREA"`
	Lines        []ResultLineResponse `json:"lines"`
	NetTotal     float64              `json:"net_total" example:"2400.00"`
	TaxTotal     float64              `json:"tax_total" example:"456.00"`
	ReserveTotal float64              `json:"reserve_total" example:"1200.00"`
	GrossTotal   float64              `json:"gross_total" example:"4056.00"`
	Provisional  bool                 `json:"provisional" example:"false"`
}

// ItemResultResponse pairs a cost item with its distribution
// @Description Distribution item result
type ItemResultResponse struct {
	ItemID      string                     `json:"item_id" example:"550e8400-e29b-41d4-a716-446655440060"`
	Description string                     `json:"description" example:"Gebäudeversicherung 2026"`
	Result      DistributionResultResponse `json:"result"`
	PostingID   *string                    `json:"posting_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440030"`
}

// DistributionRunResponse represents the outcome of a settlement run
// @Description Distribution run response
type DistributionRunResponse struct {
	Items      []ItemResultResponse `json:"items"`
	GrossTotal float64              `json:"gross_total" example:"4056.00"`
}

// Run godoc
// @Summary      Run a cost distribution
// @Description  Distribute cost items over participants by allocation key and book the results
// @Tags         distribution
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body DistributionRunRequest true "Run to execute"
// @Success      201 {object} dto.Response{data=DistributionRunResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /distribution/runs [post]
func (h *DistributionHandler) Run(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req DistributionRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	participants, err := toParticipants(req.Participants)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	items := make([]distributionapp.CostItem, len(req.Items))
	for i, item := range req.Items {
		ci, err := toCostItem(item)
		if err != nil {
			h.BadRequest(c, err.Error())
			return
		}
		items[i] = ci
	}

	result, err := h.distributions.Run(c.Request.Context(), distributionapp.RunRequest{
		TenantID:     tenantID,
		Items:        items,
		Participants: participants,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toDistributionRunResponse(result))
}

// Preview godoc
// @Summary      Preview a cost distribution
// @Description  Compute a single item's distribution without booking anything
// @Tags         distribution
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body DistributionPreviewRequest true "Item to preview"
// @Success      200 {object} dto.Response{data=DistributionResultResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /distribution/preview [post]
func (h *DistributionHandler) Preview(c *gin.Context) {
	if _, err := getTenantID(c); err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req DistributionPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	participants, err := toParticipants(req.Participants)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	item, err := toCostItem(req.Item)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.distributions.Preview(c.Request.Context(), item, participants)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toDistributionResultResponse(result))
}

// toParticipants converts and validates request participants
func toParticipants(reqs []ParticipantRequest) ([]distribution.Participant, error) {
	participants := make([]distribution.Participant, len(reqs))
	for i, p := range reqs {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_PARTICIPANT", "Invalid participant ID format")
		}
		participant, err := distribution.NewParticipant(id, p.Name, p.Weight)
		if err != nil {
			return nil, err
		}
		participants[i] = participant
	}
	return participants, nil
}

// toCostItem converts a request item, validating the allocation key
func toCostItem(req CostItemRequest) (distributionapp.CostItem, error) {
	key := distribution.Key(req.Key)
	if !key.IsValid() {
		return distributionapp.CostItem{}, shared.NewDomainError("INVALID_KEY", "Unknown allocation key: "+req.Key)
	}
	return distributionapp.CostItem{
		ID:             uuid.New(),
		Description:    req.Description,
		Amount:         valueobject.NewMoneyEUR(toDecimal(req.Amount)),
		Key:            key,
		TaxRatePercent: toDecimal(req.TaxRatePercent),
		ReserveAnnual:  toDecimal(req.ReserveAnnual),
		Monthly:        req.Monthly,
	}, nil
}

// toDistributionRunResponse converts application result to handler response
func toDistributionRunResponse(result *distributionapp.RunResult) DistributionRunResponse {
	items := make([]ItemResultResponse, len(result.Items))
	for i, item := range result.Items {
		items[i] = ItemResultResponse{
			ItemID:      item.ItemID.String(),
			Description: item.Description,
			Result:      toDistributionResultResponse(item.Result),
		}
		if item.PostingID != nil {
			postingID := item.PostingID.String()
			items[i].PostingID = &postingID
		}
	}
	return DistributionRunResponse{
		Items:      items,
		GrossTotal: result.GrossTotal.InexactFloat64(),
	}
}

// toDistributionResultResponse converts a domain result to handler response
func toDistributionResultResponse(result *distribution.Result) DistributionResultResponse {
	lines := make([]ResultLineResponse, len(result.Lines))
	for i, line := range result.Lines {
		lines[i] = ResultLineResponse{
			ParticipantID:   line.ParticipantID.String(),
			ParticipantName: line.ParticipantName,
			Weight:          line.Weight.InexactFloat64(),
			NetShare:        line.NetShare.InexactFloat64(),
			TaxShare:        line.TaxShare.InexactFloat64(),
			ReserveShare:    line.ReserveShare.InexactFloat64(),
			GrossShare:      line.GrossShare.InexactFloat64(),
			Provisional:     line.Provisional,
		}
	}
	return DistributionResultResponse{
		Key:          string(result.Key),
		Lines:        lines,
		NetTotal:     result.NetTotal.InexactFloat64(),
		TaxTotal:     result.TaxTotal.InexactFloat64(),
		ReserveTotal: result.ReserveTotal.InexactFloat64(),
		GrossTotal:   result.GrossTotal.InexactFloat64(),
		Provisional:  result.Provisional,
	}
}
