package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/julienbutty/prometrage-sub001/internal/auth"
	"github.com/julienbutty/prometrage-sub001/internal/extraction"
	"github.com/julienbutty/prometrage-sub001/internal/forms"
	"github.com/julienbutty/prometrage-sub001/internal/http/middleware"
	"github.com/julienbutty/prometrage-sub001/internal/http/response"
	"github.com/julienbutty/prometrage-sub001/internal/metrics"
	"github.com/julienbutty/prometrage-sub001/internal/repository"
	"github.com/julienbutty/prometrage-sub001/internal/service"
)

type Services struct {
	Projects       *service.ProjectService
	Items          *service.MenuiserieService
	Imports        *service.ImportService
	PurchaseOrders *service.PurchaseOrderService
}

type Handler struct {
	projects   *service.ProjectService
	items      *service.MenuiserieService
	imports    *service.ImportService
	orders     *service.PurchaseOrderService
	auth       *auth.Manager
	forms      *forms.Registry
	metrics    *metrics.Metrics
	uploadSize int64
	log        zerolog.Logger
}

func NewHandler(
	services Services,
	authManager *auth.Manager,
	registry *forms.Registry,
	m *metrics.Metrics,
	uploadSize int64,
	log zerolog.Logger,
) *Handler {
	if m == nil {
		m = metrics.Noop()
	}
	return &Handler{
		projects:   services.Projects,
		items:      services.Items,
		imports:    services.Imports,
		orders:     services.PurchaseOrders,
		auth:       authManager,
		forms:      registry,
		metrics:    m,
		uploadSize: uploadSize,
		log:        log,
	}
}

// Register mounts every route. limit guards the endpoints that are expensive
// or open to brute force.
func (h *Handler) Register(router *gin.Engine, authMiddleware, limit gin.HandlerFunc) {
	router.POST("/auth/login", limit, h.login)

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.GET("/projects", h.listProjects)
	protected.POST("/projects", h.createProject)
	protected.POST("/projects/import", limit, h.importProject)
	protected.GET("/projects/:id", h.getProject)
	protected.PUT("/projects/:id", h.updateProject)
	protected.DELETE("/projects/:id", h.deleteProject)
	protected.GET("/projects/:id/source", h.projectSource)
	protected.GET("/projects/:id/export", h.exportProject)
	protected.GET("/projects/:id/purchase-orders", h.purchaseOrders)
	protected.PUT("/projects/:id/items/order", h.reorderItems)

	protected.GET("/items/:id", h.getItem)
	protected.PUT("/items/:id", h.updateItem)
	protected.POST("/items/:id/validate", h.validateItem)
	protected.POST("/items/:id/unvalidate", h.unvalidateItem)
	protected.POST("/items/:id/ecarts", h.previewEcarts)
	protected.GET("/items/:id/form", h.itemForm)

	protected.GET("/forms", h.listForms)
	protected.GET("/forms/:key", h.getForm)

	protected.GET("/clients", h.listClients)
	protected.POST("/clients", h.createClient)
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	token, session, err := h.auth.Login(req.Password)
	if err != nil {
		h.metrics.RecordLoginAttempt("failure")
		h.handleError(c, err)
		return
	}
	h.metrics.RecordLoginAttempt("success")
	middleware.Forgive(c)
	response.OK(c, loginResponse{Token: token, ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339)})
}

type itemRequest struct {
	Repere       string         `json:"repere" binding:"max=128"`
	Intitule     string         `json:"intitule" binding:"required,max=255"`
	OriginalData map[string]any `json:"originalData"`
}

type projectRequest struct {
	Reference       string        `json:"reference" binding:"required,max=128"`
	Adresse         string        `json:"adresse" binding:"max=512"`
	ReferenceClient string        `json:"referenceClient" binding:"max=128"`
	ClientID        *string       `json:"clientId" binding:"omitempty,uuid"`
	Menuiseries     []itemRequest `json:"menuiseries" binding:"omitempty,dive"`
}

func (r projectRequest) toInput() service.ProjectInput {
	input := service.ProjectInput{
		Reference:       r.Reference,
		Adresse:         r.Adresse,
		ReferenceClient: r.ReferenceClient,
	}
	if r.ClientID != nil {
		if id, err := uuid.Parse(*r.ClientID); err == nil {
			input.ClientID = &id
		}
	}
	for _, item := range r.Menuiseries {
		input.Items = append(input.Items, service.ItemInput{
			Repere:       item.Repere,
			Intitule:     item.Intitule,
			OriginalData: item.OriginalData,
		})
	}
	return input
}

func (h *Handler) listProjects(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, projects)
}

func (h *Handler) createProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	project, err := h.projects.Create(c.Request.Context(), req.toInput())
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, project)
}

func (h *Handler) getProject(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	project, err := h.projects.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, project)
}

func (h *Handler) updateProject(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	project, err := h.projects.Update(c.Request.Context(), id, req.toInput())
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, project)
}

func (h *Handler) deleteProject(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.projects.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, gin.H{"id": id})
}

func (h *Handler) importProject(c *gin.Context) {
	if h.uploadSize > 0 {
		// multipart overhead on top of the file itself
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadSize+1<<20)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.handleError(c, &service.ValidationError{
				Message: "invalid upload",
				Fields:  []service.FieldError{{Field: "file", Message: fmt.Sprintf("must not exceed %d bytes", h.uploadSize)}},
			})
			return
		}
		h.handleError(c, &service.ValidationError{
			Message: "invalid upload",
			Fields:  []service.FieldError{{Field: "file", Message: "a PDF file is required"}},
		})
		return
	}
	defer file.Close()

	limit := h.uploadSize
	if limit <= 0 {
		limit = header.Size
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		h.handleError(c, err)
		return
	}

	project, err := h.imports.Import(c.Request.Context(), service.ImportInput{FileName: header.Filename, Data: data})
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, project)
}

func (h *Handler) projectSource(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	file, err := h.projects.Source(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+file.FileName+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func (h *Handler) exportProject(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	file, err := h.projects.Export(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.File(c, file.FileName, file.ContentType, file.Content)
}

func (h *Handler) purchaseOrders(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	format, err := service.ParsePurchaseOrderFormat(c.Query("format"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	file, err := h.orders.Generate(c.Request.Context(), id, format)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.File(c, file.FileName, file.ContentType, file.Content)
}

type reorderRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,dive,uuid"`
}

func (h *Handler) reorderItems(c *gin.Context) {
	projectID, ok := h.pathID(c)
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		ids = append(ids, uuid.MustParse(raw))
	}
	if err := h.items.Reorder(c.Request.Context(), projectID, ids); err != nil {
		h.handleError(c, err)
		return
	}
	project, err := h.projects.Get(c.Request.Context(), projectID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, project)
}

type updateItemRequest struct {
	ModifiedData map[string]any `json:"modifiedData"`
	Repere       *string        `json:"repere" binding:"omitempty,max=128"`
}

func (h *Handler) getItem(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	item, err := h.items.Get(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, item)
}

func (h *Handler) updateItem(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	item, err := h.items.Update(c.Request.Context(), id, service.UpdateItemInput{
		ModifiedData: req.ModifiedData,
		Repere:       req.Repere,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, item)
}

func (h *Handler) validateItem(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	item, err := h.items.Validate(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, item)
}

func (h *Handler) unvalidateItem(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	item, err := h.items.Unvalidate(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, item)
}

type previewRequest struct {
	ModifiedData map[string]any `json:"modifiedData"`
}

func (h *Handler) previewEcarts(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	preview, err := h.items.PreviewEcarts(c.Request.Context(), id, req.ModifiedData)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, preview)
}

func (h *Handler) itemForm(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	form, err := h.items.Form(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, form)
}

func (h *Handler) listForms(c *gin.Context) {
	response.OK(c, h.forms.Keys())
}

func (h *Handler) getForm(c *gin.Context) {
	cfg, ok := h.forms.Get(c.Param("key"))
	if !ok {
		h.handleError(c, fmt.Errorf("%w: form %q", service.ErrNotFound, c.Param("key")))
		return
	}
	response.OK(c, cfg)
}

type clientRequest struct {
	Nom       string `json:"nom" binding:"required,max=255"`
	Email     string `json:"email" binding:"omitempty,email,max=255"`
	Telephone string `json:"telephone" binding:"max=64"`
}

func (h *Handler) listClients(c *gin.Context) {
	clients, err := h.projects.ListClients(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, clients)
}

func (h *Handler) createClient(c *gin.Context) {
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	client, err := h.projects.CreateClient(c.Request.Context(), service.ClientInput{
		Nom:       req.Nom,
		Email:     req.Email,
		Telephone: req.Telephone,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, client)
}

func (h *Handler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		h.handleError(c, &service.ValidationError{
			Message: "invalid identifier",
			Fields:  []service.FieldError{{Field: "id", Message: "must be a UUID"}},
		})
		return uuid.Nil, false
	}
	return id, true
}

// bindError reports request binding failures with one detail per field.
func (h *Handler) bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]service.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, service.FieldError{Field: fieldPath(fe), Message: ruleMessage(fe)})
		}
		h.handleError(c, &service.ValidationError{Message: "invalid request", Fields: fields})
		return
	}
	h.handleError(c, &service.ValidationError{
		Message: "invalid request body",
		Fields:  []service.FieldError{{Field: "body", Message: err.Error()}},
	})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var (
		validation *service.ValidationError
		conflict   *repository.ConflictError
		parseErr   *extraction.ParseError
	)

	switch {
	case errors.As(err, &validation):
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, validation.Message, validation.Fields)
	case errors.Is(err, service.ErrNoValidatedItems):
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, err.Error(),
			[]service.FieldError{{Field: "menuiseries", Message: "validate at least one menuiserie first"}})
	case errors.Is(err, service.ErrInvalidInput):
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.CodeNotFound, err.Error(), nil)
	case errors.As(err, &conflict):
		response.Fail(c, http.StatusConflict, response.CodeConflict, conflict.Error(), gin.H{"field": conflict.Field})
	case errors.As(err, &parseErr):
		details := gin.H{}
		if parseErr.Kind == extraction.KindLowConfidence {
			details["confidence"] = parseErr.Confidence
		}
		response.Fail(c, http.StatusUnprocessableEntity, string(parseErr.Kind), parseErr.Message, details)
	case errors.Is(err, auth.ErrInvalidPassword), errors.Is(err, auth.ErrInvalidToken):
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error(), nil)
	case errors.Is(err, service.ErrExtractionUnavailable):
		h.log.Error().Err(err).Msg("extraction unavailable")
		response.Fail(c, http.StatusServiceUnavailable, response.CodeServer, err.Error(), nil)
	default:
		h.log.Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
		response.Fail(c, http.StatusInternalServerError, response.CodeServer, err.Error(), nil)
	}
}

// fieldPath drops the request struct name from the validator namespace:
// "projectRequest.menuiseries[0].intitule" becomes "menuiseries[0].intitule".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must contain at least " + fe.Param() + " element(s)"
	case "uuid":
		return "must be a UUID"
	case "email":
		return "must be a valid email address"
	default:
		return "failed on " + fe.Tag()
	}
}
