package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/julienbutty/prometrage-sub001/internal/auth"
	"github.com/julienbutty/prometrage-sub001/internal/db"
	"github.com/julienbutty/prometrage-sub001/internal/excel"
	"github.com/julienbutty/prometrage-sub001/internal/extraction"
	"github.com/julienbutty/prometrage-sub001/internal/forms"
	"github.com/julienbutty/prometrage-sub001/internal/http/middleware"
	"github.com/julienbutty/prometrage-sub001/internal/metrics"
	"github.com/julienbutty/prometrage-sub001/internal/model"
	"github.com/julienbutty/prometrage-sub001/internal/pdf"
	"github.com/julienbutty/prometrage-sub001/internal/ratelimit"
	"github.com/julienbutty/prometrage-sub001/internal/repository"
	"github.com/julienbutty/prometrage-sub001/internal/service"
	"github.com/julienbutty/prometrage-sub001/internal/storage"
)

const testPassword = "chantier-2025"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubExtractor struct {
	result *extraction.Result
	err    error
}

func (s *stubExtractor) Extract(context.Context, extraction.Document) (*extraction.Result, error) {
	return s.result, s.err
}

type testServer struct {
	router    *gin.Engine
	extractor *stubExtractor
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()

	database, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(database))

	registry, err := forms.NewRegistry()
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := storage.NewFileStore(afero.NewMemMapFs())
	extractor := &stubExtractor{}

	projectRepo := repository.NewProjectRepository(database)
	clientRepo := repository.NewClientRepository(database)
	itemRepo := repository.NewMenuiserieRepository(database)

	services := Services{
		Projects:       service.NewProjectService(projectRepo, clientRepo, store, excel.NewGenerator(), zerolog.Nop()),
		Items:          service.NewMenuiserieService(itemRepo, projectRepo, registry, m),
		Imports:        service.NewImportService(projectRepo, extractor, store, m, service.ImportConfig{MaxBytes: 2 << 20, MaxPages: 5}, zerolog.Nop()),
		PurchaseOrders: service.NewPurchaseOrderService(projectRepo, pdf.NewGenerator(), registry, m),
	}
	manager := auth.NewManager(testPassword, "jwt-secret", time.Hour)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), rateLimit, time.Minute)

	handler := NewHandler(services, manager, registry, m, 2<<20, zerolog.Nop())
	router := NewRouter(handler,
		middleware.Auth(manager),
		middleware.RateLimit(limiter, m, zerolog.Nop()),
		RouterConfig{Environment: "test", Gatherer: reg, Metrics: m, Log: zerolog.Nop(), Ping: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		}},
	)
	return &testServer{router: router, extractor: extractor}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body any, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req.Header.Set(middleware.PasswordHeader, testPassword)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if target != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, target))
	}
	return env
}

type itemJSON struct {
	ID           string                     `json:"id"`
	Repere       string                     `json:"repere"`
	Validated    bool                       `json:"validated"`
	Status       string                     `json:"status"`
	ModifiedData map[string]any             `json:"modifiedData"`
	Ecarts       map[string]json.RawMessage `json:"ecarts"`
	Direction    *string                    `json:"openingDirection"`
}

type projectJSON struct {
	ID          string     `json:"id"`
	Reference   string     `json:"reference"`
	Menuiseries []itemJSON `json:"menuiseries"`
	Progress    struct {
		Total     int `json:"total"`
		Validated int `json:"validated"`
	} `json:"progress"`
}

func (s *testServer) createProject(t *testing.T, reference string, count int) projectJSON {
	t.Helper()
	items := make([]gin.H, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, gin.H{
			"repere":       fmt.Sprintf("R%d", i+1),
			"intitule":     "Fenêtre 2 vantaux",
			"originalData": gin.H{"largeur": 1200, "hauteur": 1350, "sensOuverture": "droite tirant"},
		})
	}
	rec := s.do(t, http.MethodPost, "/projects", gin.H{"reference": reference, "menuiseries": items}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var project projectJSON
	decode(t, rec, &project)
	return project
}

func (s *testServer) validate(t *testing.T, itemID string, largeur float64) {
	t.Helper()
	rec := s.do(t, http.MethodPut, "/items/"+itemID, gin.H{"modifiedData": gin.H{"largeur": largeur}}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/items/"+itemID+"/validate", nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	s := newTestServer(t, 10)

	rec := s.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec, nil).Success)

	rec = s.do(t, http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, 10)

	rec := s.do(t, http.MethodGet, "/projects", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec, nil).Error.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", gin.H{"password": "wrong"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", gin.H{"password": testPassword}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, rec, &login)
	require.NotEmpty(t, login.Token)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	res := httptest.NewRecorder()
	s.router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/auth/login", gin.H{"password": "guess"}, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/auth/login", gin.H{"password": testPassword}, false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decode(t, rec, nil).Error.Code)
}

func TestSuccessfulLoginResetsAttempts(t *testing.T) {
	s := newTestServer(t, 2)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/auth/login", gin.H{"password": "guess"}, false).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/login", gin.H{"password": testPassword}, false).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/auth/login", gin.H{"password": "guess"}, false).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/auth/login", gin.H{"password": "guess"}, false).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodPost, "/auth/login", gin.H{"password": "guess"}, false).Code)
}

func TestProjectValidationAndConflict(t *testing.T) {
	s := newTestServer(t, 10)

	rec := s.do(t, http.MethodPost, "/projects", gin.H{"adresse": "sans référence"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec, nil)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	var details []service.FieldError
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	assert.Equal(t, []service.FieldError{{Field: "reference", Message: "is required"}}, details)

	s.createProject(t, "CH-100", 0)
	rec = s.do(t, http.MethodPost, "/projects", gin.H{"reference": "CH-100"}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	env = decode(t, rec, nil)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	assert.JSONEq(t, `{"field":"reference"}`, string(env.Error.Details))
}

func TestNotFoundAndBadIdentifier(t *testing.T) {
	s := newTestServer(t, 10)

	rec := s.do(t, http.MethodGet, "/projects/7b0f9a7e-0a8c-4a3f-9f57-3b4f2b1c5d6e", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec, nil).Error.Code)

	rec = s.do(t, http.MethodGet, "/items/not-a-uuid", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec, nil).Error.Code)
}

func TestItemWorkflow(t *testing.T) {
	s := newTestServer(t, 10)
	project := s.createProject(t, "CH-200", 1)
	itemID := project.Menuiseries[0].ID

	rec := s.do(t, http.MethodPut, "/items/"+itemID, gin.H{"modifiedData": gin.H{"largeur": "abc"}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/items/"+itemID+"/validate", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "cannot validate without corrections")

	rec = s.do(t, http.MethodPost, "/items/"+itemID+"/ecarts", gin.H{"modifiedData": gin.H{"largeur": 1320}}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var preview struct {
		Ecarts map[string]struct {
			Percentage float64 `json:"percentage"`
			Severity   string  `json:"severity"`
		} `json:"ecarts"`
	}
	decode(t, rec, &preview)
	assert.Equal(t, 10.0, preview.Ecarts["largeur"].Percentage)
	assert.Equal(t, "high", preview.Ecarts["largeur"].Severity)

	s.validate(t, itemID, 1180)

	rec = s.do(t, http.MethodGet, "/items/"+itemID, nil, true)
	var item itemJSON
	decode(t, rec, &item)
	assert.Equal(t, "VALIDATED", item.Status)
	assert.Contains(t, item.Ecarts, "largeur")
	require.NotNil(t, item.Direction)
	assert.Equal(t, "gauche", *item.Direction)

	rec = s.do(t, http.MethodPut, "/items/"+itemID, gin.H{}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "an empty body changes nothing")

	rec = s.do(t, http.MethodPut, "/items/"+itemID, gin.H{"modifiedData": gin.H{}}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &item)
	assert.False(t, item.Validated)
	assert.Equal(t, "IMPORTED", item.Status)

	rec = s.do(t, http.MethodGet, "/items/"+itemID+"/form", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var form service.ItemForm
	decode(t, rec, &form)
	assert.Equal(t, "fenetre", form.FormKey)
}

func TestPurchaseOrdersEndpoint(t *testing.T) {
	s := newTestServer(t, 10)
	project := s.createProject(t, "CH-300", 3)
	path := "/projects/" + project.ID + "/purchase-orders"

	rec := s.do(t, http.MethodGet, path, nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec, nil).Error.Code)

	s.validate(t, project.Menuiseries[0].ID, 1210)
	rec = s.do(t, http.MethodGet, path, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="bon-de-commande-CH-300-R1.pdf"`, rec.Header().Get("Content-Disposition"))

	s.validate(t, project.Menuiseries[2].ID, 1190)
	rec = s.do(t, http.MethodGet, path, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))

	rec = s.do(t, http.MethodGet, path+"?format=pdf", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="bons-de-commande-CH-300.pdf"`, rec.Header().Get("Content-Disposition"))

	rec = s.do(t, http.MethodGet, path+"?format=docx", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/projects/"+project.ID+"/export", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
}

func TestReorderEndpoint(t *testing.T) {
	s := newTestServer(t, 10)
	project := s.createProject(t, "CH-400", 2)
	first, second := project.Menuiseries[0].ID, project.Menuiseries[1].ID

	rec := s.do(t, http.MethodPut, "/projects/"+project.ID+"/items/order", gin.H{"ids": []string{second, first}}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var reordered projectJSON
	decode(t, rec, &reordered)
	assert.Equal(t, second, reordered.Menuiseries[0].ID)

	rec = s.do(t, http.MethodPut, "/projects/"+project.ID+"/items/order", gin.H{"ids": []string{"x"}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartUpload(t *testing.T, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "fiche.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func (s *testServer) upload(t *testing.T, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, content)
	req := httptest.NewRequest(http.MethodPost, "/projects/import", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(middleware.PasswordHeader, testPassword)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestImportEndpoint(t *testing.T) {
	s := newTestServer(t, 10)
	sheet, err := pdf.NewGenerator().Generate(model.PurchaseOrderDocument{
		Project: model.Project{Reference: "FICHE"},
		Item:    model.Menuiserie{Repere: "1", Intitule: "Fenêtre"},
		Date:    time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	s.extractor.err = &extraction.ParseError{Kind: extraction.KindLowConfidence, Message: "too low", Confidence: 0.2}
	rec := s.upload(t, sheet)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "LOW_CONFIDENCE", decode(t, rec, nil).Error.Code)

	rec = s.upload(t, []byte("plain text, not a pdf"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_DOCUMENT_TYPE", decode(t, rec, nil).Error.Code)

	high := 0.95
	s.extractor.err = nil
	s.extractor.result = &extraction.Result{
		DocumentType: extraction.DocumentTypeMeasurementSheet,
		Confidence:   &high,
		Project:      extraction.ProjectInfo{Reference: "MET-77", Client: extraction.ClientInfo{Nom: "Petit"}},
		Items:        []extraction.Item{{Repere: "Cuisine", Intitule: "Fenêtre 1 vantail", Data: map[string]any{"largeur": 800.0}}},
	}
	rec = s.upload(t, sheet)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var project projectJSON
	decode(t, rec, &project)
	assert.Equal(t, "MET-77", project.Reference)
	require.Len(t, project.Menuiseries, 1)

	rec = s.do(t, http.MethodGet, "/projects/"+project.ID+"/source", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	rec = s.do(t, http.MethodGet, "/clients", nil, true)
	var clients []model.Client
	decode(t, rec, &clients)
	require.Len(t, clients, 1)
	assert.Equal(t, "Petit", clients[0].Nom)
}

func TestFormsEndpoints(t *testing.T) {
	s := newTestServer(t, 10)

	rec := s.do(t, http.MethodGet, "/forms", nil, true)
	var keys []string
	decode(t, rec, &keys)
	assert.Equal(t, []string{"coulissant", "fenetre", "porte", "porte-fenetre"}, keys)

	rec = s.do(t, http.MethodGet, "/forms/porte", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/forms/veranda", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClientEndpoints(t *testing.T) {
	s := newTestServer(t, 10)

	rec := s.do(t, http.MethodPost, "/clients", gin.H{"nom": "Garcia", "email": "pas-un-email"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var details []service.FieldError
	require.NoError(t, json.Unmarshal(decode(t, rec, nil).Error.Details, &details))
	assert.Equal(t, "email", details[0].Field)

	rec = s.do(t, http.MethodPost, "/clients", gin.H{"nom": "Garcia", "email": "garcia@example.fr"}, true)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
