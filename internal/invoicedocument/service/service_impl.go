package service

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	"github.com/smallbiznis/tmsbilling/internal/clock"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	"github.com/smallbiznis/tmsbilling/internal/invoice/render"
	"github.com/smallbiznis/tmsbilling/internal/invoicedocument/domain"
	"github.com/smallbiznis/tmsbilling/internal/observability/metrics"
	"github.com/smallbiznis/tmsbilling/internal/observability/tracing"
	"github.com/smallbiznis/tmsbilling/internal/storage"
	"github.com/smallbiznis/tmsbilling/pkg/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Validate   *validator.Validate
	Store      storage.Store
	Renderer   *render.Renderer
	InvoiceSvc invoicedomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	validate   *validator.Validate
	store      storage.Store
	renderer   *render.Renderer
	invoiceSvc invoicedomain.Service
	metrics    *metrics.Metrics
	documents  repository.Repository[domain.Document]
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("invoicedocument.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		validate:   p.Validate,
		store:      p.Store,
		renderer:   p.Renderer,
		invoiceSvc: p.InvoiceSvc,
		metrics:    p.Metrics,
		documents:  repository.ProvideStore[domain.Document](p.DB),
	}
}

func (s *Service) GenerateInvoicePDF(ctx context.Context, invoice invoicedomain.InvoiceWithDetails) ([]byte, error) {
	data, err := s.renderer.Render(ctx, invoice)
	if err != nil {
		s.metrics.RecordInvoiceDocument(ctx, metrics.DocumentResultRenderError)
		return nil, err
	}
	return data, nil
}

// PersistInvoicePDF stores data under invoices/. Without a file name one is generated from the
// invoice number and a ULID. Existing objects are never replaced.
func (s *Service) PersistInvoicePDF(ctx context.Context, data []byte, invoiceNumber string, fileName string) (result domain.PersistResult, err error) {
	const op = "invoice_document.persist"
	ctx, span := tracing.Start(ctx, op, attribute.Int("size_bytes", len(data)))
	defer func() { tracing.EndSpan(span, err) }()

	if len(data) == 0 {
		return domain.PersistResult{}, billingerr.Validation(op, domain.ErrEmptyDocument)
	}

	name, err := s.objectName(invoiceNumber, fileName)
	if err != nil {
		return domain.PersistResult{}, billingerr.Validation(op, err)
	}

	stored, err := s.store.Upload(ctx, path.Join(domain.Folder, name), data, domain.PDFContentType, false)
	switch {
	case errors.Is(err, storage.ErrObjectExists):
		s.metrics.RecordInvoiceDocument(ctx, metrics.DocumentResultConflict)
		return domain.PersistResult{}, billingerr.Conflict(op, domain.ErrDocumentExists)
	case errors.Is(err, storage.ErrInvalidPath):
		return domain.PersistResult{}, billingerr.Validation(op, domain.ErrInvalidFileName)
	case err != nil:
		s.metrics.RecordInvoiceDocument(ctx, metrics.DocumentResultStoreError)
		return domain.PersistResult{}, billingerr.Dependency(op, err)
	}

	s.metrics.RecordInvoiceDocument(ctx, metrics.DocumentResultPersisted)
	return domain.PersistResult{FilePath: stored, FileName: name}, nil
}

func (s *Service) Generate(ctx context.Context, invoiceID string, req domain.GenerateRequest) (doc domain.Document, err error) {
	const op = "invoice_document.generate"
	ctx, span := tracing.Start(ctx, op, attribute.String("invoice_id", invoiceID))
	defer func() { tracing.EndSpan(span, err) }()

	if err := s.validate.StructCtx(ctx, req); err != nil {
		return domain.Document{}, billingerr.Validation(op, domain.ErrInvalidFileName)
	}

	invoice, err := s.invoiceSvc.GetByID(ctx, invoiceID)
	if err != nil {
		return domain.Document{}, err
	}
	data, err := s.GenerateInvoicePDF(ctx, invoice)
	if err != nil {
		return domain.Document{}, err
	}
	persisted, err := s.PersistInvoicePDF(ctx, data, invoice.DisplayNumber(), req.FileName)
	if err != nil {
		return domain.Document{}, err
	}

	doc = domain.Document{
		ID:          s.genID.Generate(),
		InvoiceID:   invoice.ID,
		FileName:    persisted.FileName,
		FilePath:    persisted.FilePath,
		ContentType: domain.PDFContentType,
		SizeBytes:   int64(len(data)),
		Metadata: datatypes.JSONMap{
			"invoice_number": invoice.DisplayNumber(),
			"is_paid":        invoice.IsPaid,
			"load_count":     len(invoice.Loads),
		},
		CreatedAt: s.clock.Now(),
	}
	if err := s.documents.Create(ctx, &doc); err != nil {
		s.log.Error("document stored but not recorded",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("file_path", persisted.FilePath),
			zap.Error(err),
		)
		return domain.Document{}, billingerr.Dependency(op, err)
	}

	s.log.Info("invoice document generated",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("file_path", doc.FilePath),
		zap.Int64("size_bytes", doc.SizeBytes),
	)
	return doc, nil
}

func (s *Service) List(ctx context.Context, invoiceID string) ([]domain.Document, error) {
	const op = "invoice_document.list"

	invoice, err := s.invoiceSvc.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	items, err := s.documents.Find(ctx, &domain.Document{InvoiceID: invoice.ID},
		repository.OrderBy("created_at desc"),
		repository.OrderBy("id desc"),
	)
	if err != nil {
		return nil, billingerr.Dependency(op, err)
	}

	docs := make([]domain.Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, *item)
	}
	return docs, nil
}

func (s *Service) Download(ctx context.Context, documentID string) (domain.Document, []byte, error) {
	const op = "invoice_document.download"

	id, err := snowflake.ParseString(strings.TrimSpace(documentID))
	if err != nil || id <= 0 {
		return domain.Document{}, nil, billingerr.Validation(op, domain.ErrInvalidDocumentID)
	}
	doc, err := s.documents.FindOne(ctx, &domain.Document{ID: id})
	if err != nil {
		return domain.Document{}, nil, billingerr.Dependency(op, err)
	}
	if doc == nil {
		return domain.Document{}, nil, billingerr.NotFound(op, domain.ErrNotFound)
	}

	data, err := s.store.Get(ctx, doc.FilePath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return domain.Document{}, nil, billingerr.NotFound(op, domain.ErrObjectMissing)
	}
	if err != nil {
		return domain.Document{}, nil, billingerr.Dependency(op, err)
	}
	return *doc, data, nil
}

func (s *Service) objectName(invoiceNumber, fileName string) (string, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName != "" {
		if strings.ContainsAny(fileName, `/\`) || fileName == "." || fileName == ".." {
			return "", domain.ErrInvalidFileName
		}
		if !strings.EqualFold(path.Ext(fileName), ".pdf") {
			fileName += ".pdf"
		}
		return fileName, nil
	}

	prefix := strings.Trim(unsafeNameChars.ReplaceAllString(strings.TrimSpace(invoiceNumber), "-"), "-")
	if prefix == "" {
		return "", domain.ErrInvalidInvoiceNumber
	}
	id := ulid.MustNew(ulid.Timestamp(s.clock.Now()), ulid.DefaultEntropy())
	return prefix + "_" + id.String() + ".pdf", nil
}
