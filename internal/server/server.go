// Package server is the HTTP boundary: thin gin handlers translating
// between JSON and the domain services.
package server

import (
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	balancedomain "github.com/manabill-io/manabill/internal/balance/domain"
	transferdomain "github.com/manabill-io/manabill/internal/banktransfer/domain"
	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	"github.com/manabill-io/manabill/internal/config"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
	invoicedomain "github.com/manabill-io/manabill/internal/invoice/domain"
	miledomain "github.com/manabill-io/manabill/internal/mile/domain"
	pricingdomain "github.com/manabill-io/manabill/internal/pricing/domain"
)

type Server struct {
	log *zap.Logger
	cfg config.Config

	db          *gorm.DB
	catalogSvc  catalogdomain.Service
	previewSvc  pricingdomain.PreviewService
	confirmSvc  pricingdomain.ConfirmationService
	contractSvc contractdomain.Service
	billingSvc  billingdomain.Service
	invoiceSvc  invoicedomain.Service
	transferSvc transferdomain.Service
	mileSvc     miledomain.Service
	balanceSvc  balancedomain.Service
	registry    *prometheus.Registry
}

type ServerParam struct {
	fx.In

	Log         *zap.Logger
	Config      config.Config
	DB          *gorm.DB
	CatalogSvc  catalogdomain.Service
	PreviewSvc  pricingdomain.PreviewService
	ConfirmSvc  pricingdomain.ConfirmationService
	ContractSvc contractdomain.Service
	BillingSvc  billingdomain.Service
	InvoiceSvc  invoicedomain.Service
	TransferSvc transferdomain.Service
	MileSvc     miledomain.Service
	BalanceSvc  balancedomain.Service
	Registry    *prometheus.Registry
}

func NewServer(p ServerParam) *Server {
	return &Server{
		log:         p.Log.Named("server"),
		cfg:         p.Config,
		db:          p.DB,
		catalogSvc:  p.CatalogSvc,
		previewSvc:  p.PreviewSvc,
		confirmSvc:  p.ConfirmSvc,
		contractSvc: p.ContractSvc,
		billingSvc:  p.BillingSvc,
		invoiceSvc:  p.InvoiceSvc,
		transferSvc: p.TransferSvc,
		mileSvc:     p.MileSvc,
		balanceSvc:  p.BalanceSvc,
		registry:    p.Registry,
	}
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
)

// RegisterRoutes mounts every endpoint on the engine.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(200) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	{
		v1.GET("/products", s.ListProducts)
		v1.GET("/courses", s.ListCourses)

		v1.POST("/pricing/preview", s.PreviewPricing)
		v1.POST("/pricing/pack-preview", s.PreviewPackPricing)
		v1.POST("/pricing/confirm", s.ConfirmPurchase)

		v1.GET("/contracts/:id", s.GetContract)
		v1.GET("/guardians/:guardian_id/contracts", s.ListGuardianContracts)
		v1.PATCH("/contracts/:id/schedule", s.ChangeContractSchedule)
		v1.POST("/contracts/:id/cancel", s.CancelContract)

		v1.POST("/billing/close", s.CloseMonth)
		v1.POST("/billing/reopen", s.ReopenMonth)
		v1.GET("/billing", s.ListBillingByPeriod)
		v1.GET("/guardians/:guardian_id/billing", s.ListGuardianBilling)

		v1.POST("/invoices/issue", s.IssueInvoice)
		v1.GET("/invoices/:id", s.GetInvoice)
		v1.POST("/payments", s.RecordPayment)
		v1.POST("/payments/debit-results", s.ImportDebitResults)

		v1.POST("/bank-transfers/import", s.ImportBankTransfers)
		v1.GET("/bank-transfers/unmatched", s.ListUnmatchedTransfers)
		v1.GET("/bank-transfers/exports/:import_id", s.ExportBankTransfers)
		v1.POST("/bank-transfers/:id/apply", s.ApplyBankTransfer)

		v1.GET("/guardians/:guardian_id/miles", s.GetMileBalance)
		v1.POST("/miles/grant", s.GrantMonthlyMiles)

		v1.GET("/guardians/:guardian_id/balance", s.GetGuardianBalance)
		v1.POST("/guardians/:guardian_id/balance/deposit", s.DepositGuardianBalance)
	}
}

// tenantID reads the tenant from the X-Tenant-ID header; every route
// is tenant scoped.
func tenantID(c *gin.Context) (snowflake.ID, bool) {
	id, err := parseID(c.GetHeader("X-Tenant-ID"))
	if err != nil {
		AbortWithError(c, apiError{Status: 400, Code: "missing_tenant", Message: "X-Tenant-ID header required"})
		return 0, false
	}
	return id, true
}

func actorID(c *gin.Context) snowflake.ID {
	id, err := parseID(c.GetHeader("X-Actor-ID"))
	if err != nil {
		return 0
	}
	return id
}

func actorRole(c *gin.Context) string {
	return c.GetHeader("X-Actor-Role")
}

func parseID(raw string) (snowflake.ID, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return snowflake.ID(n), nil
}

func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := parseID(c.Param(name))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
