package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) GetMileBalance(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	guardian, ok := pathID(c, "guardian_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	balance, err := s.mileSvc.GetBalance(ctx, s.db, tenant, guardian)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	canUse, err := s.mileSvc.CanUseMiles(ctx, s.db, tenant, guardian)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{
		"balance":            balance,
		"can_use":            canUse,
		"available_discount": s.mileSvc.CalculateDiscount(balance),
	})
}

type grantMilesRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (s *Server) GrantMonthlyMiles(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req grantMilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.mileSvc.ProcessMonthlyMiles(c.Request.Context(), tenant, req.Year, req.Month)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, report)
}
