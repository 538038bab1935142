package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/billing-engine/internal/application/port"
	"github.com/garyjia/billing-engine/internal/application/service"
	"github.com/garyjia/billing-engine/internal/container"
	"github.com/garyjia/billing-engine/internal/domain/apperror"
	"github.com/garyjia/billing-engine/internal/domain/entity"
	"github.com/garyjia/billing-engine/pkg/utils"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	invoices service.InvoiceService
	exporter port.InvoiceExporter
	health   HealthSource
	logger   Logger
}

// HealthSource reports component health for GET /health
type HealthSource interface {
	Health() *container.HealthStatus
}

// NewHandlers creates a new Handlers instance. A nil health source reports healthy.
func NewHandlers(
	invoices service.InvoiceService,
	exporter port.InvoiceExporter,
	health HealthSource,
	logger Logger,
) *Handlers {
	return &Handlers{
		invoices: invoices,
		exporter: exporter,
		health:   health,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details []string    `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                               `json:"status"`
	Timestamp  string                               `json:"timestamp"`
	Version    string                               `json:"version"`
	Components map[string]container.ComponentHealth `json:"components,omitempty"`
}

// InvoiceDataRequest describes the invoice to create when no draft is named
type InvoiceDataRequest struct {
	CompanyProfileID int64   `json:"company_profile_id"`
	InvoiceDate      string  `json:"invoice_date"`
	ExternalNumber   *string `json:"external_number"`
	Notes            *string `json:"notes"`
}

// CreateInvoiceRequest is the body of POST /api/invoices
type CreateInvoiceRequest struct {
	EntityID              int64               `json:"entity_id"`
	TaskIDs               []int64             `json:"task_ids"`
	InvoiceInternalNumber string              `json:"invoice_internal_number"`
	InvoiceData           *InvoiceDataRequest `json:"invoice_data"`
}

// ListInvoicesRequest represents query parameters for listing invoices
type ListInvoicesRequest struct {
	EntityID         *int64 `form:"entity_id"`
	CompanyProfileID *int64 `form:"company_profile_id"`
	Status           string `form:"status"`
	DateField        string `form:"date_field"`
	DateFrom         string `form:"date_from"`
	DateTo           string `form:"date_to"`
	Search           string `form:"search"`
	Page             int    `form:"page"`
	PageSize         int    `form:"page_size"`
}

// UpdateInvoiceInfoRequest is the body of PATCH /api/invoices/id/:id
type UpdateInvoiceInfoRequest struct {
	CompanyProfileID *int64  `json:"company_profile_id"`
	InvoiceDate      *string `json:"invoice_date"`
	ExternalNumber   *string `json:"external_number"`
	Notes            *string `json:"notes"`
}

// UpdateStatusRequest is the body of PATCH /api/invoices/id/:id/status
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UnlinkTasksRequest is the body of POST /api/invoices/id/:id/unlink
type UnlinkTasksRequest struct {
	TaskIDs []int64 `json:"task_ids"`
}

// BulkActionRequest is the body of POST /api/invoices/bulk
type BulkActionRequest struct {
	InvoiceIDs []int64 `json:"invoice_ids"`
	Action     string  `json:"action" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	data := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}
	if h.health == nil {
		c.JSON(http.StatusOK, Response{Success: true, Data: data})
		return
	}

	status := h.health.Health()
	data.Components = status.Components
	if !status.Overall {
		data.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Data:    data,
			Error:   "service unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// CreateOrAppendInvoice handles POST /api/invoices
func (h *Handlers) CreateOrAppendInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	input := service.CreateInvoiceInput{
		EntityID:              req.EntityID,
		TaskIDs:               req.TaskIDs,
		InvoiceInternalNumber: req.InvoiceInternalNumber,
		CurrentUser:           c.GetHeader(HeaderUserID),
	}
	if req.InvoiceData != nil {
		date, err := utils.ParseDate(req.InvoiceData.InvoiceDate)
		if err != nil {
			h.badRequest(c, "invalid invoice_date", err)
			return
		}
		input.InvoiceData = &service.InvoiceData{
			CompanyProfileID: req.InvoiceData.CompanyProfileID,
			InvoiceDate:      date,
			ExternalNumber:   req.InvoiceData.ExternalNumber,
			Notes:            req.InvoiceData.Notes,
		}
	}

	details, err := h.invoices.CreateOrAppendInvoice(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, "Failed to create or append invoice", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: details})
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	var req ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	query := service.InvoiceQuery{
		EntityID:         req.EntityID,
		CompanyProfileID: req.CompanyProfileID,
		DateField:        req.DateField,
		Search:           utils.SanitizeString(req.Search),
		Page:             req.Page,
		PageSize:         req.PageSize,
	}
	if req.Status != "" {
		status := entity.InvoiceStatus(req.Status)
		query.Status = &status
	}

	var err error
	if query.DateFrom, err = utils.ParseDate(req.DateFrom); err != nil {
		h.badRequest(c, "invalid date_from", err)
		return
	}
	if query.DateTo, err = utils.ParseDate(req.DateTo); err != nil {
		h.badRequest(c, "invalid date_to", err)
		return
	}

	list, err := h.invoices.GetInvoices(c.Request.Context(), query)
	if err != nil {
		h.writeError(c, "Failed to list invoices", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: list})
}

// GetInvoiceDetails handles GET /api/invoices/:number
func (h *Handlers) GetInvoiceDetails(c *gin.Context) {
	details, err := h.invoices.GetInvoiceDetails(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.writeError(c, "Failed to get invoice", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: details})
}

// ExportInvoice handles GET /api/invoices/:number/export
func (h *Handlers) ExportInvoice(c *gin.Context) {
	number := c.Param("number")
	details, err := h.invoices.GetInvoiceDetails(c.Request.Context(), number)
	if err != nil {
		h.writeError(c, "Failed to load invoice for export", err)
		return
	}

	filename := fmt.Sprintf("%s.%s", number, h.exporter.FileExtension())
	c.Header("Content-Type", h.exporter.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if err := h.exporter.Export(details, c.Writer); err != nil {
		// headers are already out; log only
		h.logger.Error("Invoice export failed", "internal_number", number, "error", err)
	}
}

// UpdateInvoiceInfo handles PATCH /api/invoices/id/:id
func (h *Handlers) UpdateInvoiceInfo(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	var req UpdateInvoiceInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	update := entity.InvoiceInfoUpdate{
		CompanyProfileID: req.CompanyProfileID,
		ExternalNumber:   req.ExternalNumber,
		Notes:            req.Notes,
	}
	if req.InvoiceDate != nil {
		date, err := utils.ParseDate(*req.InvoiceDate)
		if err != nil || date == nil {
			h.badRequest(c, "invalid invoice_date", err)
			return
		}
		update.InvoiceDate = date
	}

	invoice, err := h.invoices.UpdateInvoiceInfo(c.Request.Context(), id, update)
	if err != nil {
		h.writeError(c, "Failed to update invoice info", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: invoice})
}

// UpdateInvoiceStatus handles PATCH /api/invoices/id/:id/status
func (h *Handlers) UpdateInvoiceStatus(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "status is required", err)
		return
	}

	invoice, err := h.invoices.UpdateInvoiceStatus(c.Request.Context(), id, entity.InvoiceStatus(req.Status), c.GetHeader(HeaderUserID))
	if err != nil {
		h.writeError(c, "Failed to update invoice status", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: invoice})
}

// UnlinkTasks handles POST /api/invoices/id/:id/unlink
func (h *Handlers) UnlinkTasks(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	var req UnlinkTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	result, err := h.invoices.UnlinkTasksFromInvoice(c.Request.Context(), id, req.TaskIDs)
	if err != nil {
		h.writeError(c, "Failed to unlink tasks", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// CancelInvoice handles POST /api/invoices/id/:id/cancel
func (h *Handlers) CancelInvoice(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	result, err := h.invoices.CancelInvoice(c.Request.Context(), id, c.GetHeader(HeaderUserID))
	if err != nil {
		h.writeError(c, "Failed to cancel invoice", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// GetStatusHistory handles GET /api/invoices/id/:id/history
func (h *Handlers) GetStatusHistory(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	history, err := h.invoices.GetStatusHistory(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "Failed to get status history", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// BulkAction handles POST /api/invoices/bulk
func (h *Handlers) BulkAction(c *gin.Context) {
	var req BulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "action is required", err)
		return
	}

	result, err := h.invoices.BulkInvoiceAction(c.Request.Context(), req.InvoiceIDs, service.BulkAction(req.Action), c.GetHeader(HeaderUserID))
	if err != nil {
		h.writeError(c, "Bulk action failed", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

func (h *Handlers) invoiceID(c *gin.Context) (int64, bool) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		h.badRequest(c, "invalid invoice ID", err)
		return 0, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, message string, err error) {
	h.logger.Error("Invalid request", "path", c.Request.URL.Path, "message", message, "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: message})
}

// writeError maps application errors onto HTTP statuses. Unclassified
// failures are reported as 500 without their internal message.
func (h *Handlers) writeError(c *gin.Context, logMessage string, err error) {
	appErr := apperror.As(err)
	if appErr == nil {
		h.logger.Error(logMessage, "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperror.KindValidation:
		status = http.StatusBadRequest
	case apperror.KindNotFound:
		status = http.StatusNotFound
	case apperror.KindForbidden:
		status = http.StatusForbidden
	}

	c.JSON(status, Response{
		Success: false,
		Error:   appErr.Message,
		Details: appErr.Details,
	})
}
