package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-categorizer/internal/categorizer"
	"github.com/insightdelivered/statement-categorizer/internal/logger"
	"github.com/insightdelivered/statement-categorizer/internal/models"
	"github.com/insightdelivered/statement-categorizer/internal/statement"
	"github.com/insightdelivered/statement-categorizer/internal/store"
	"github.com/insightdelivered/statement-categorizer/internal/writer"
)

const Version = "2.0.0"

// metadataPrefix marks upload form fields copied into the result metadata.
const metadataPrefix = "metadata."

// Processor parses an uploaded statement.
type Processor interface {
	Process(ctx context.Context, data []byte, fileName string, metadata map[string]string) (*models.StatementResult, error)
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Processor      Processor
	Results        store.ResultStore
	Categories     *categorizer.Store
	Log            zerolog.Logger
	MaxUploadBytes int64
	StaticDir      string
}

// StatementResponse is the JSON form of a processed statement.
type StatementResponse struct {
	Success   bool                   `json:"success"`
	ID        string                 `json:"id"`
	FileName  string                 `json:"fileName"`
	PageCount int                    `json:"pageCount"`
	ParsedAt  time.Time              `json:"parsedAt"`
	Strategy  string                 `json:"strategy,omitempty"`
	Records   []models.WireRecord    `json:"records"`
	Summary   models.Summary         `json:"summary"`
	Breakdown []models.CategoryTotal `json:"breakdown,omitempty"`
	Warnings  []string               `json:"warnings,omitempty"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// NewStatementResponse converts a result to its JSON form.
func NewStatementResponse(r *models.StatementResult) StatementResponse {
	return StatementResponse{
		Success:   true,
		ID:        r.ID,
		FileName:  r.FileName,
		PageCount: r.PageCount,
		ParsedAt:  r.ParsedAt,
		Strategy:  r.Strategy,
		Records:   models.WireRecords(r.Records),
		Summary:   r.Summary,
		Breakdown: r.Breakdown,
		Warnings:  r.Warnings,
		Metadata:  r.Metadata,
	}
}

// NewApp builds the fiber application with middleware and routes.
func NewApp(h *Handler) *fiber.App {
	limit := 4 * 1024 * 1024
	if h.MaxUploadBytes > 0 {
		// room for the multipart envelope and metadata fields
		limit = int(h.MaxUploadBytes) + 1<<20
	}
	app := fiber.New(fiber.Config{
		AppName:               "statement-categorizer",
		BodyLimit:             limit,
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	app.Use(requestLogger(h.Log))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/health", h.HandleHealth)

	api.Post("/statements", h.HandleUpload)
	api.Get("/statements", h.HandleList)
	api.Get("/statements/:id", h.HandleGet)
	api.Delete("/statements/:id", h.HandleDelete)
	api.Get("/statements/:id/csv", h.HandleCSV)
	api.Post("/statements/:id/reclassify", h.HandleReclassify)

	api.Get("/categories", h.HandleListCategories)
	api.Post("/categories", h.HandleAddCategory)
	api.Post("/categories/reload", h.HandleReloadCategories)
	api.Put("/categories/:id", h.HandleUpdateCategory)
	api.Delete("/categories/:id", h.HandleDeleteCategory)

	// Serve the dashboard build; unknown paths fall back to index.html.
	if h.StaticDir != "" {
		app.Static("/", h.StaticDir)
		index := filepath.Join(h.StaticDir, "index.html")
		app.Get("/*", func(c *fiber.Ctx) error {
			if strings.HasPrefix(c.Path(), "/api/") {
				return fiber.ErrNotFound
			}
			return c.SendFile(index)
		})
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok", "version": Version, "engine": "fiber"}
	if p, ok := h.Results.(pinger); ok {
		if err := p.Ping(c.UserContext()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
		}
	}
	return c.JSON(resp)
}

func (h *Handler) HandleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest("No file uploaded. Use form field 'file'.")
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		return badRequest("Only PDF files are supported.")
	}
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		return badRequest(fmt.Sprintf("File is too large; the limit is %d MB.", h.MaxUploadBytes>>20))
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}

	res, err := h.Processor.Process(c.UserContext(), data, fh.Filename, uploadMetadata(c))
	if err != nil {
		return err
	}

	if err := h.Results.Save(c.UserContext(), res); err != nil {
		log := logger.FromContext(c.UserContext())
		log.Error().Err(err).Str("statement_id", res.ID).Msg("saving statement failed")
		res.Warnings = append(res.Warnings, "the statement could not be saved")
	}
	return c.Status(fiber.StatusCreated).JSON(NewStatementResponse(res))
}

func (h *Handler) HandleList(c *fiber.Ctx) error {
	page := store.Page{Number: c.QueryInt("page", 1), Size: c.QueryInt("limit", store.DefaultPageSize)}

	var (
		l   store.Listing
		err error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		l, err = h.Results.Search(c.UserContext(), q, page)
	} else {
		l, err = h.Results.List(c.UserContext(), page)
	}
	if err != nil {
		return err
	}
	return c.JSON(l)
}

func (h *Handler) HandleGet(c *fiber.Ctx) error {
	res, err := h.Results.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(NewStatementResponse(res))
}

func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	if err := h.Results.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleCSV(c *fiber.Ctx) error {
	res, err := h.Results.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	names := make(map[string]string)
	for _, cat := range h.Categories.List() {
		names[cat.ID] = cat.Name
	}
	w := &writer.CSVWriter{IncludeHeader: c.Query("header") != "false", CategoryNames: names}

	var buf bytes.Buffer
	if err := w.Write(&buf, res); err != nil {
		return fmt.Errorf("CSV generation failed: %w", err)
	}
	c.Attachment(strings.TrimSuffix(res.FileName, filepath.Ext(res.FileName)) + ".csv")
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}

func (h *Handler) HandleReclassify(c *fiber.Ctx) error {
	ctx := c.UserContext()
	res, err := h.Results.Get(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	changed := statement.Reclassify(res, h.Categories.Snapshot())
	if changed > 0 {
		if err := h.Results.UpdateRecords(ctx, res); err != nil {
			return err
		}
	}
	log := logger.FromContext(ctx)
	log.Info().Str("statement_id", res.ID).Int("changed", changed).Msg("statement reclassified")
	return c.JSON(fiber.Map{"changed": changed, "statement": NewStatementResponse(res)})
}

// uploadMetadata collects the "metadata.<key>" form fields.
func uploadMetadata(c *fiber.Ctx) map[string]string {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	meta := make(map[string]string)
	for k, v := range form.Value {
		key := strings.TrimPrefix(k, metadataPrefix)
		if key == k || key == "" || len(v) == 0 {
			continue
		}
		meta[key] = v[0]
	}
	return meta
}

func badRequest(msg string) error {
	return &statement.Error{Kind: statement.KindInvalidInput, Msg: msg}
}

// errorHandler renders every error returned by a handler as ErrorResponse.
func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	status, code, msg := classify(err)
	if status >= fiber.StatusInternalServerError {
		log := logger.FromContext(c.UserContext())
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(ErrorResponse{Success: false, Error: msg, Code: code})
}

// classify maps an error to its HTTP status, machine code and message.
func classify(err error) (int, string, string) {
	if kind, ok := statement.KindOf(err); ok {
		var se *statement.Error
		errors.As(err, &se)
		switch kind {
		case statement.KindInvalidInput:
			return fiber.StatusBadRequest, string(kind), se.Msg
		default:
			return fiber.StatusUnprocessableEntity, string(kind), se.Msg
		}
	}

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, "", fe.Message
	case errors.Is(err, store.ErrNotFound), errors.Is(err, categorizer.ErrNotFound):
		return fiber.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, categorizer.ErrDefaultCategory):
		return fiber.StatusConflict, "default_category", err.Error()
	case errors.Is(err, categorizer.ErrDuplicateCategory):
		return fiber.StatusConflict, "duplicate_category", err.Error()
	case categorizer.IsValidationError(err):
		return fiber.StatusBadRequest, "invalid_category", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "timeout", "the request took too long"
	}
	return fiber.StatusInternalServerError, "internal", "internal server error"
}
