package server

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	pricingdomain "github.com/manabill-io/manabill/internal/pricing/domain"
)

type previewPricingRequest struct {
	GuardianID        snowflake.ID   `json:"guardian_id"`
	StudentID         snowflake.ID   `json:"student_id"`
	CourseID          snowflake.ID   `json:"course_id"`
	StartDate         string         `json:"start_date"`
	DaysOfWeek        []int          `json:"days_of_week"`
	AdditionalTickets int            `json:"additional_tickets"`
	TextbookIDs       []snowflake.ID `json:"textbook_ids"`
}

func (r previewPricingRequest) toDomain(tenant snowflake.ID) (pricingdomain.PreviewRequest, error) {
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return pricingdomain.PreviewRequest{}, pricingdomain.ErrInvalidStartDate
	}
	return pricingdomain.PreviewRequest{
		TenantID:          tenant,
		GuardianID:        r.GuardianID,
		StudentID:         r.StudentID,
		CourseID:          r.CourseID,
		StartDate:         start,
		DaysOfWeek:        r.DaysOfWeek,
		AdditionalTickets: r.AdditionalTickets,
		TextbookIDs:       r.TextbookIDs,
	}, nil
}

func (s *Server) PreviewPricing(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req previewPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	domainReq, err := req.toDomain(tenant)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.previewSvc.Preview(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

type packPreviewRequest struct {
	PackID    snowflake.ID `json:"pack_id"`
	StartDate string       `json:"start_date"`
}

func (s *Server) PreviewPackPricing(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req packPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		AbortWithError(c, pricingdomain.ErrInvalidStartDate)
		return
	}

	resp, err := s.previewSvc.PackPreview(c.Request.Context(), pricingdomain.PackPreviewRequest{
		TenantID:  tenant,
		PackID:    req.PackID,
		StartDate: start,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

type confirmPurchaseRequest struct {
	previewPricingRequest

	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	RedeemMiles    int    `json:"redeem_miles"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (s *Server) ConfirmPurchase(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req confirmPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	previewReq, err := req.toDomain(tenant)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.confirmSvc.ConfirmPurchase(c.Request.Context(), pricingdomain.ConfirmRequest{
		PreviewRequest: previewReq,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		RedeemMiles:    req.RedeemMiles,
		IdempotencyKey: req.IdempotencyKey,
		ActorID:        actorID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}
