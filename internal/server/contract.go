package server

import (
	"github.com/gin-gonic/gin"

	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
)

func (s *Server) GetContract(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	contract, err := s.contractSvc.Get(c.Request.Context(), tenant, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, contract)
}

func (s *Server) ListGuardianContracts(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	guardian, ok := pathID(c, "guardian_id")
	if !ok {
		return
	}

	contracts, err := s.contractSvc.ListByGuardian(c.Request.Context(), tenant, guardian)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, contracts, nil)
}

type changeScheduleRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (s *Server) ChangeContractSchedule(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req changeScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contract, err := s.contractSvc.ChangeSchedule(c.Request.Context(), contractdomain.ChangeScheduleRequest{
		TenantID:   tenant,
		ContractID: id,
		ActorID:    actorID(c),
		ActorRole:  actorRole(c),
		DayOfWeek:  req.DayOfWeek,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, contract)
}

type cancelContractRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelContract(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req cancelContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contract, err := s.contractSvc.Cancel(c.Request.Context(), contractdomain.CancelRequest{
		TenantID:   tenant,
		ContractID: id,
		ActorID:    actorID(c),
		ActorRole:  actorRole(c),
		Reason:     req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, contract)
}
