package server

import (
	"github.com/gin-gonic/gin"

	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
)

type closeMonthRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (s *Server) CloseMonth(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req closeMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.billingSvc.CloseMonth(c.Request.Context(), billingdomain.CloseMonthRequest{
		TenantID: tenant,
		Year:     req.Year,
		Month:    req.Month,
		ActorID:  actorID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, report)
}

type reopenMonthRequest struct {
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Reason string `json:"reason"`
}

func (s *Server) ReopenMonth(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req reopenMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.billingSvc.ReopenMonth(c.Request.Context(), billingdomain.ReopenMonthRequest{
		TenantID: tenant,
		Year:     req.Year,
		Month:    req.Month,
		ActorID:  actorID(c),
		Reason:   req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"year": req.Year, "month": req.Month, "status": "reopened"})
}

func (s *Server) ListBillingByPeriod(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	year := queryInt(c, "year", 0)
	month := queryInt(c, "month", 0)
	if year == 0 || month == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	bills, err := s.billingSvc.ListByPeriod(c.Request.Context(), tenant, year, month)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, bills, nil)
}

func (s *Server) ListGuardianBilling(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	guardian, ok := pathID(c, "guardian_id")
	if !ok {
		return
	}

	bills, err := s.billingSvc.ListOutstanding(c.Request.Context(), tenant, guardian)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, bills, nil)
}
