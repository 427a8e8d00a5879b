package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tmsbilling/internal/authorization"
	"github.com/smallbiznis/tmsbilling/internal/billingdashboard"
	billingdashboarddomain "github.com/smallbiznis/tmsbilling/internal/billingdashboard/domain"
	"github.com/smallbiznis/tmsbilling/internal/clock"
	"github.com/smallbiznis/tmsbilling/internal/config"
	"github.com/smallbiznis/tmsbilling/internal/customer"
	customerdomain "github.com/smallbiznis/tmsbilling/internal/customer/domain"
	"github.com/smallbiznis/tmsbilling/internal/invoice"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	"github.com/smallbiznis/tmsbilling/internal/invoicedocument"
	invoicedocumentdomain "github.com/smallbiznis/tmsbilling/internal/invoicedocument/domain"
	"github.com/smallbiznis/tmsbilling/internal/load"
	loaddomain "github.com/smallbiznis/tmsbilling/internal/load/domain"
	"github.com/smallbiznis/tmsbilling/internal/lock"
	obsmiddleware "github.com/smallbiznis/tmsbilling/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tmsbilling/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tmsbilling/internal/observability/tracing"
	"github.com/smallbiznis/tmsbilling/internal/ratelimit"
	"github.com/smallbiznis/tmsbilling/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	authorization.Module,
	lock.Module,
	ratelimit.Module,
	storage.Module,
	customer.Module,
	load.Module,
	invoice.Module,
	billingdashboard.Module,
	invoicedocument.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterAPIRoutes()
	}),
	fx.Invoke(run),
)

func NewEngine(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine              *gin.Engine
	cfg                 config.Config
	clock               clock.Clock
	authzSvc            authorization.Service
	customerSvc         customerdomain.Service
	loadSvc             loaddomain.Service
	invoiceSvc          invoicedomain.Service
	billingDashboardSvc billingdashboarddomain.Service
	documentSvc         invoicedocumentdomain.Service
	renderLimiter       renderLimiter
	log                 *zap.Logger
}

type ServerParams struct {
	fx.In

	Engine              *gin.Engine
	Cfg                 config.Config
	Clock               clock.Clock
	AuthzSvc            authorization.Service
	CustomerSvc         customerdomain.Service
	LoadSvc             loaddomain.Service
	InvoiceSvc          invoicedomain.Service
	BillingDashboardSvc billingdashboarddomain.Service
	DocumentSvc         invoicedocumentdomain.Service
	RenderLimiter       *ratelimit.DocumentLimiter `optional:"true"`
	Log                 *zap.Logger                `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		engine:              p.Engine,
		cfg:                 p.Cfg,
		clock:               p.Clock,
		authzSvc:            p.AuthzSvc,
		customerSvc:         p.CustomerSvc,
		loadSvc:             p.LoadSvc,
		invoiceSvc:          p.InvoiceSvc,
		billingDashboardSvc: p.BillingDashboardSvc,
		documentSvc:         p.DocumentSvc,
		renderLimiter:       p.RenderLimiter,
		log:                 log.Named("http.server"),
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.AuthRequired())

	billing := api.Group("/billing")
	{
		billing.GET("/summary", s.RequirePermission(authorization.ObjectBilling, authorization.ActionBillingView), s.GetBillingSummary)
		billing.GET("/ready-loads", s.RequirePermission(authorization.ObjectBilling, authorization.ActionBillingView), s.ListReadyLoads)
		billing.GET("/ready-by-customer", s.RequirePermission(authorization.ObjectBilling, authorization.ActionBillingView), s.ListReadyByCustomer)

		billing.GET("/invoices/outstanding", s.RequirePermission(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListOutstandingInvoices)
		billing.GET("/invoices/paid", s.RequirePermission(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListPaidInvoices)
		billing.GET("/invoices/outstanding/export", s.RequirePermission(authorization.ObjectBilling, authorization.ActionBillingExport), s.ExportOutstandingInvoices)
		billing.GET("/invoices/paid/export", s.RequirePermission(authorization.ObjectBilling, authorization.ActionBillingExport), s.ExportPaidInvoices)

		billing.POST("/invoices", s.RequirePermission(authorization.ObjectInvoice, authorization.ActionInvoiceCreate), s.CreateInvoice)
		billing.GET("/invoices/:id", s.RequirePermission(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoiceByID)
		billing.POST("/invoices/:id/pay", s.RequirePermission(authorization.ObjectInvoice, authorization.ActionInvoicePay), s.MarkInvoicePaid)
		billing.POST("/invoices/:id/number", s.RequirePermission(authorization.ObjectInvoice, authorization.ActionInvoiceNumber), s.AssignInvoiceNumber)

		billing.POST("/invoices/:id/documents", s.RequirePermission(authorization.ObjectInvoice, authorization.ActionInvoiceRender), s.LimitDocumentRender(), s.GenerateInvoiceDocument)
		billing.GET("/invoices/:id/documents", s.RequirePermission(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListInvoiceDocuments)
		billing.GET("/documents/:documentId", s.RequirePermission(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.DownloadDocument)
	}

	api.GET("/customers", s.RequirePermission(authorization.ObjectCustomer, authorization.ActionCustomerView), s.ListCustomers)
	api.POST("/customers", s.RequirePermission(authorization.ObjectCustomer, authorization.ActionCustomerCreate), s.CreateCustomer)
	api.GET("/customers/:id", s.RequirePermission(authorization.ObjectCustomer, authorization.ActionCustomerView), s.GetCustomerByID)

	api.GET("/loads", s.RequirePermission(authorization.ObjectLoad, authorization.ActionLoadView), s.ListLoads)
	api.POST("/loads", s.RequirePermission(authorization.ObjectLoad, authorization.ActionLoadCreate), s.CreateLoad)
	api.GET("/loads/:id", s.RequirePermission(authorization.ObjectLoad, authorization.ActionLoadView), s.GetLoadByID)
	api.POST("/loads/:id/status", s.RequirePermission(authorization.ObjectLoad, authorization.ActionLoadUpdateStatus), s.UpdateLoadStatus)
}
