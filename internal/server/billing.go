package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdashboarddomain "github.com/smallbiznis/tmsbilling/internal/billingdashboard/domain"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	"github.com/smallbiznis/tmsbilling/internal/report"
)

func (s *Server) GetBillingSummary(c *gin.Context) {
	resp, err := s.billingDashboardSvc.GetBillingSummary(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReadyLoads(c *gin.Context) {
	var req billingdashboarddomain.ReadyLoadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Search = strings.TrimSpace(req.Search)
	req.InvoiceNumber = strings.TrimSpace(req.InvoiceNumber)

	resp, err := s.billingDashboardSvc.GetLoadsReadyForInvoice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Loads, "page_info": resp.PageInfo})
}

func (s *Server) ListReadyByCustomer(c *gin.Context) {
	resp, err := s.billingDashboardSvc.ListReadyByCustomer(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Customers})
}

func (s *Server) ListOutstandingInvoices(c *gin.Context) {
	req, err := bindInvoiceListQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.invoiceSvc.GetOutstandingInvoices(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListPaidInvoices(c *gin.Context) {
	req, err := bindInvoiceListQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.invoiceSvc.GetPaidInvoicesLast30Days(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ExportOutstandingInvoices(c *gin.Context) {
	s.exportInvoices(c, "Outstanding", s.invoiceSvc.GetOutstandingInvoices)
}

func (s *Server) ExportPaidInvoices(c *gin.Context) {
	s.exportInvoices(c, "Paid", s.invoiceSvc.GetPaidInvoicesLast30Days)
}

type invoiceLister func(ctx context.Context, req invoicedomain.ListInvoiceRequest) ([]invoicedomain.InvoiceWithDetails, error)

func (s *Server) exportInvoices(c *gin.Context, sheet string, list invoiceLister) {
	req, err := bindInvoiceListQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := list(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data, err := report.InvoicesXLSX(sheet, items)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	fileName := fmt.Sprintf("%s-invoices-%s.xlsx", strings.ToLower(sheet), s.clock.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, report.ContentType, data)
}
