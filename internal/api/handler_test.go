package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-categorizer/internal/categorizer"
	"github.com/insightdelivered/statement-categorizer/internal/extractor"
	"github.com/insightdelivered/statement-categorizer/internal/statement"
	"github.com/insightdelivered/statement-categorizer/internal/store"
)

const statementText = `ATTIJARIWAFA BANK - RELEVE DE COMPTE
02/01/2024  PAIEMENT PAR CARTE 4112 BIM 1714           150.50
03/01/2024  VIREMENT RECU DE ENTREPRISE ABC                        3000.00
05/01/2024  LOYER JANVIER PRELEVEMENT                   500.00
08/01/2024  RETRAIT GAB AGENCE CENTRE               245.75
10/01/2024  FRAIS DE TENUE DE COMPTE                85.00
31/01/2024  SOLDE FIN DE PERIODE                    2018.75`

const balanceOnlyText = `ATTIJARIWAFA BANK - RELEVE DE COMPTE COURANT AGENCE CASABLANCA CENTRE
SAUF ERREUR OU OMISSION DE NOTRE PART DANS UN DELAI DE 30 JOURS
SOLDE AU 31/01/2024    12 500,00`

// fakeText answers by upload content: "broken" fails, "balance" has no
// transactions, anything else is a valid statement.
type fakeText struct{}

func (fakeText) Extract(_ context.Context, data []byte) (extractor.Document, error) {
	switch string(data) {
	case "broken":
		return extractor.Document{}, errors.New("pdf reader crashed")
	case "balance":
		return extractor.Document{Text: balanceOnlyText, PageCount: 1}, nil
	}
	return extractor.Document{Text: statementText, PageCount: 1}, nil
}

func setupTestApp(t *testing.T) (*fiber.App, *Handler) {
	t.Helper()
	cats, err := categorizer.NewStore(filepath.Join(t.TempDir(), "categories.yaml"), zerolog.Nop())
	require.NoError(t, err)

	h := &Handler{
		Processor:      statement.NewProcessor(fakeText{}, cats, zerolog.Nop()),
		Results:        store.NewMemory(),
		Categories:     cats,
		Log:            zerolog.Nop(),
		MaxUploadBytes: 1 << 20,
	}
	return NewApp(h), h
}

func uploadRequest(t *testing.T, fileName, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/statements", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func upload(t *testing.T, app *fiber.App) StatementResponse {
	t.Helper()
	status, body := do(t, app, uploadRequest(t, "releve.pdf", "%PDF-1.4", nil))
	require.Equal(t, fiber.StatusCreated, status, string(body))
	return decode[StatementResponse](t, body)
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, fiber.StatusOK, status)

	result := decode[map[string]string](t, body)
	assert.Equal(t, "ok", result["status"])
	assert.Equal(t, "fiber", result["engine"])
}

func TestUpload(t *testing.T) {
	app, _ := setupTestApp(t)

	req := uploadRequest(t, "releve.pdf", "%PDF-1.4", map[string]string{"metadata.account": "courant", "other": "x"})
	status, body := do(t, app, req)
	require.Equal(t, fiber.StatusCreated, status, string(body))

	var raw struct {
		Records []map[string]any `json:"records"`
		Summary map[string]any   `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(body, &raw))
	require.Len(t, raw.Records, 5)
	assert.Equal(t, "02/01/2024", raw.Records[0]["date"])
	assert.Equal(t, 150.5, raw.Records[0]["amount"])
	assert.Equal(t, "Outgoing", raw.Records[0]["status"])
	assert.Equal(t, "shopping", raw.Records[0]["category"])
	assert.Equal(t, "Incoming", raw.Records[1]["status"])
	assert.Equal(t, "981.25", raw.Summary["totalOut"])
	assert.Equal(t, "2018.75", raw.Summary["net"])

	res := decode[StatementResponse](t, body)
	assert.Equal(t, map[string]string{"account": "courant"}, res.Metadata)

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/statements", nil))
	require.Equal(t, fiber.StatusOK, status)
	l := decode[store.Listing](t, body)
	require.Equal(t, 1, l.Total)
	assert.Equal(t, res.ID, l.Items[0].ID)
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		status   int
		code     string
		contains string
	}{
		{
			name: "missing file",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "", "", map[string]string{"x": "y"})
			},
			status: fiber.StatusBadRequest, code: "invalid_input", contains: "No file uploaded",
		},
		{
			name:   "not a pdf",
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "notes.txt", "hello", nil) },
			status: fiber.StatusBadRequest, code: "invalid_input", contains: "Only PDF",
		},
		{
			name:   "empty file",
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "empty.pdf", "", nil) },
			status: fiber.StatusBadRequest, code: "invalid_input", contains: "document buffer is empty",
		},
		{
			name:   "too large",
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "big.pdf", strings.Repeat("x", 3<<19), nil) },
			status: fiber.StatusBadRequest, code: "invalid_input", contains: "too large",
		},
		{
			name:   "unreadable",
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "broken.pdf", "broken", nil) },
			status: fiber.StatusUnprocessableEntity, code: "extraction",
		},
		{
			name:   "no transactions",
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "balance.pdf", "balance", nil) },
			status: fiber.StatusUnprocessableEntity, code: "no_records", contains: "no transactions were found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := setupTestApp(t)

			status, body := do(t, app, tt.req(t))
			assert.Equal(t, tt.status, status, string(body))

			res := decode[ErrorResponse](t, body)
			assert.False(t, res.Success)
			assert.Equal(t, tt.code, res.Code)
			assert.Contains(t, res.Error, tt.contains)
		})
	}
}

func TestStatementLifecycle(t *testing.T) {
	app, _ := setupTestApp(t)
	res := upload(t, app)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/statements/"+res.ID, nil))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, res.ID, decode[StatementResponse](t, body).ID)

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/statements?q=entreprise", nil))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, decode[store.Listing](t, body).Total)

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/statements?q=nothing", nil))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 0, decode[store.Listing](t, body).Total)

	status, _ = do(t, app, httptest.NewRequest(http.MethodDelete, "/api/statements/"+res.ID, nil))
	require.Equal(t, fiber.StatusNoContent, status)

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/statements/"+res.ID, nil))
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, body).Code)
}

func TestStatementCSV(t *testing.T) {
	app, _ := setupTestApp(t)
	res := upload(t, app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/statements/"+res.ID+"/csv?header=false", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "releve.csv")

	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Date,Description,Status,Category,Amount", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "02/01/2024,"))
	assert.True(t, strings.HasSuffix(lines[1], ",Outgoing,Shopping,150.50"), lines[1])
}

func TestReclassify(t *testing.T) {
	app, _ := setupTestApp(t)
	res := upload(t, app)
	assert.Equal(t, categorizer.DefaultOutID, res.Records[2].Category)

	status, body := do(t, app, jsonRequest(http.MethodPost, "/api/categories", map[string]any{
		"name": "Housing", "keywords": []string{"loyer"}, "applicableFor": []string{"OUT"},
	}))
	require.Equal(t, fiber.StatusCreated, status, string(body))

	status, body = do(t, app, httptest.NewRequest(http.MethodPost, "/api/statements/"+res.ID+"/reclassify", nil))
	require.Equal(t, fiber.StatusOK, status, string(body))

	out := decode[struct {
		Changed   int               `json:"changed"`
		Statement StatementResponse `json:"statement"`
	}](t, body)
	assert.Equal(t, 1, out.Changed)
	assert.Equal(t, "housing", out.Statement.Records[2].Category)

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/statements/"+res.ID, nil))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "housing", decode[StatementResponse](t, body).Records[2].Category)
}

func TestCategoryEndpoints(t *testing.T) {
	app, h := setupTestApp(t)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, body), len(categorizer.DefaultCategories()))

	status, body = do(t, app, jsonRequest(http.MethodPost, "/api/categories", map[string]any{"name": "Shopping"}))
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "duplicate_category", decode[ErrorResponse](t, body).Code)

	status, body = do(t, app, jsonRequest(http.MethodPost, "/api/categories", map[string]any{"name": "Gym", "color": "blue"}))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_category", decode[ErrorResponse](t, body).Code)

	status, body = do(t, app, jsonRequest(http.MethodPut, "/api/categories/cash", map[string]any{
		"name": "Cash", "keywords": []string{"retrait", "atm"}, "applicableFor": []string{"OUT"},
	}))
	require.Equal(t, fiber.StatusOK, status, string(body))
	cat, err := h.Categories.Get("cash")
	require.NoError(t, err)
	assert.Equal(t, []string{"RETRAIT", "ATM"}, cat.Keywords)

	status, body = do(t, app, httptest.NewRequest(http.MethodDelete, "/api/categories/"+categorizer.DefaultOutID, nil))
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "default_category", decode[ErrorResponse](t, body).Code)

	status, _ = do(t, app, httptest.NewRequest(http.MethodDelete, "/api/categories/cash", nil))
	assert.Equal(t, fiber.StatusNoContent, status)

	status, _ = do(t, app, httptest.NewRequest(http.MethodDelete, "/api/categories/cash", nil))
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = do(t, app, httptest.NewRequest(http.MethodPost, "/api/categories/reload", nil))
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, body), len(categorizer.DefaultCategories())-1)
}
