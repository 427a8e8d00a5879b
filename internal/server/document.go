package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedocumentdomain "github.com/smallbiznis/tmsbilling/internal/invoicedocument/domain"
)

func (s *Server) GenerateInvoiceDocument(c *gin.Context) {
	var req invoicedocumentdomain.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	doc, err := s.documentSvc.Generate(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": doc})
}

func (s *Server) ListInvoiceDocuments(c *gin.Context) {
	docs, err := s.documentSvc.List(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": docs})
}

func (s *Server) DownloadDocument(c *gin.Context) {
	doc, data, err := s.documentSvc.Download(c.Request.Context(), strings.TrimSpace(c.Param("documentId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, data)
}
