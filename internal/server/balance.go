package server

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (s *Server) GetGuardianBalance(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	guardian, ok := pathID(c, "guardian_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	balance, err := s.balanceSvc.GetBalance(ctx, s.db, tenant, guardian)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	logs, err := s.balanceSvc.ListLogs(ctx, s.db, tenant, guardian)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"balance": balance, "logs": logs})
}

type depositRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (s *Server) DepositGuardianBalance(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	guardian, ok := pathID(c, "guardian_id")
	if !ok {
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var balance int64
	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = s.balanceSvc.Deposit(c.Request.Context(), tx, tenant, guardian, req.Amount, req.Reason)
		return err
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{"balance": balance})
}
