package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	invoicedomain "github.com/manabill-io/manabill/internal/invoice/domain"
)

type issueInvoiceRequest struct {
	GuardianID snowflake.ID `json:"guardian_id"`
	Year       int          `json:"year"`
	Month      int          `json:"month"`
}

func (s *Server) IssueInvoice(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req issueInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.IssueInvoice(c.Request.Context(), tenant, req.GuardianID, req.Year, req.Month)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, invoice)
}

func (s *Server) GetInvoice(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.Get(c.Request.Context(), tenant, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, invoice)
}

type recordPaymentRequest struct {
	GuardianID snowflake.ID  `json:"guardian_id"`
	InvoiceID  *snowflake.ID `json:"invoice_id"`
	Amount     int64         `json:"amount"`
	Method     string        `json:"method"`
	Memo       string        `json:"memo"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	method := invoicedomain.PaymentMethod(req.Method)
	if method == "" {
		method = invoicedomain.PaymentMethodManual
	}

	result, err := s.invoiceSvc.RecordPayment(c.Request.Context(), invoicedomain.RecordPaymentRequest{
		TenantID:   tenant,
		GuardianID: req.GuardianID,
		InvoiceID:  req.InvoiceID,
		Amount:     req.Amount,
		Method:     method,
		Memo:       req.Memo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, result)
}

// ImportDebitResults accepts a Shift-JIS debit result CSV as the raw
// request body.
func (s *Server) ImportDebitResults(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	report, err := s.invoiceSvc.ImportDebitResults(c.Request.Context(), tenant, c.Request.Body)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, report)
}
