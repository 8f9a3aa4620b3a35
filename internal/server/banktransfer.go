package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	transferdomain "github.com/manabill-io/manabill/internal/banktransfer/domain"
)

// ImportBankTransfers accepts a Shift-JIS transfer CSV as the raw
// request body; the file name comes from the X-File-Name header.
func (s *Server) ImportBankTransfers(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	report, err := s.transferSvc.ImportCSV(c.Request.Context(), tenant, c.GetHeader("X-File-Name"), c.Request.Body)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, report)
}

func (s *Server) ListUnmatchedTransfers(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	transfers, err := s.transferSvc.ListUnmatched(c.Request.Context(), tenant)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, transfers, nil)
}

func (s *Server) ExportBankTransfers(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	importID, ok := pathID(c, "import_id")
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	if err := s.transferSvc.ExportCSV(c.Request.Context(), tenant, importID, c.Writer); err != nil {
		AbortWithError(c, err)
	}
}

type applyTransferRequest struct {
	GuardianID *snowflake.ID `json:"guardian_id"`
	InvoiceID  *snowflake.ID `json:"invoice_id"`
}

func (s *Server) ApplyBankTransfer(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req applyTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.transferSvc.Apply(c.Request.Context(), transferdomain.ApplyRequest{
		TenantID:   tenant,
		TransferID: id,
		GuardianID: req.GuardianID,
		InvoiceID:  req.InvoiceID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}
