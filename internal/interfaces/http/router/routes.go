package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hausverwaltung/backend/internal/interfaces/http/handler"
)

// Handlers bundles the API handlers the route table needs
type Handlers struct {
	System       *handler.SystemHandler
	Payment      *handler.PaymentHandler
	Dunning      *handler.DunningHandler
	Banking      *handler.BankingHandler
	Distribution *handler.DistributionHandler
	Outbox       *handler.OutboxHandler
}

// Build assembles the versioned API route table on the engine. Middleware
// passed here applies to every API route; the health probes are registered
// outside the API group so they stay middleware-free.
func Build(engine *gin.Engine, h Handlers, middleware ...gin.HandlerFunc) *Router {
	engine.GET("/health", healthProbe)
	engine.GET("/healthz", healthProbe)

	r := NewRouter(engine)

	billing := NewDomainGroup("billing", "/billing")
	billing.Use(middleware...)
	billing.POST("/payments", h.Payment.Allocate)
	billing.POST("/payments/preview", h.Payment.Preview)
	billing.POST("/dunning/run", h.Dunning.Run)
	billing.GET("/invoices/:id/dunning", h.Dunning.AssessInvoice)

	banking := NewDomainGroup("banking", "/banking")
	banking.Use(middleware...)
	banking.POST("/transactions", h.Banking.ImportTransaction)
	banking.POST("/transactions/import", h.Banking.ImportStatement)
	banking.GET("/matches/suggestions", h.Banking.SuggestMatches)
	banking.POST("/matches/confirm", h.Banking.ConfirmMatch)
	banking.DELETE("/transactions/:id/match", h.Banking.UnlinkMatch)

	distribution := NewDomainGroup("distribution", "/distribution")
	distribution.Use(middleware...)
	distribution.POST("/runs", h.Distribution.Run)
	distribution.POST("/preview", h.Distribution.Preview)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo)
	system.GET("/ping", h.System.Ping)
	if h.Outbox != nil {
		system.GET("/outbox/stats", h.Outbox.GetStats)
		system.GET("/outbox/dead", h.Outbox.GetDeadLetterEntries)
		system.GET("/outbox/:id", h.Outbox.GetEntry)
		system.POST("/outbox/dead/:id/retry", h.Outbox.RetryDeadEntry)
		system.POST("/outbox/dead/retry-all", h.Outbox.RetryAllDeadEntries)
	}

	r.Register(billing).Register(banking).Register(distribution).Register(system)
	r.Setup()
	return r
}

func healthProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
