package dispatchhandler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"dispatch-server/services/dispatch-api/internal/domain/dispatch"
	"dispatch-server/services/dispatch-api/internal/infrastructure/invoker"
	"dispatch-server/services/dispatch-api/internal/infrastructure/observability"
	"dispatch-server/services/dispatch-api/internal/interfaces/httpserver/dto"
	"dispatch-server/services/dispatch-api/internal/utils/platformerrors"
)

// DispatchHandler exposes the dispatch service over HTTP.
type DispatchHandler struct {
	service  *dispatch.Service
	invokers *invoker.Factory
	validate *validator.Validate
	log      zerolog.Logger
}

func NewDispatchHandler(service *dispatch.Service, invokers *invoker.Factory, log zerolog.Logger) *DispatchHandler {
	return &DispatchHandler{
		service:  service,
		invokers: invokers,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With().Str("component", "dispatch-handler").Logger(),
	}
}

// Dispatch accepts one natural-language command and returns its result.
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	var req dto.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("invalid_request", err.Error()))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("validation_failed", err.Error()))
		return
	}

	result, err := h.service.Dispatch(c.Request.Context(), dispatch.Command{
		SessionID: req.SessionID,
		Text:      req.Text,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.OK(dto.FromResult(result)))
}

// GetDispatch returns a stored dispatch record by public id.
func (h *DispatchHandler) GetDispatch(c *gin.Context) {
	publicID := c.Param("public_id")
	record, err := h.service.History(c.Request.Context(), publicID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, dto.Error("not_found", "no dispatch with that id"))
		return
	}
	c.JSON(http.StatusOK, dto.OK(dto.FromRecord(record)))
}

// ListDispatches returns the most recent dispatch records, newest first.
func (h *DispatchHandler) ListDispatches(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 200 {
		c.JSON(http.StatusBadRequest, dto.Error("invalid_request", "limit must be between 1 and 200"))
		return
	}

	records, err := h.service.RecentHistory(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]dto.DispatchRecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.FromRecord(record))
	}
	c.JSON(http.StatusOK, dto.OK(responses))
}

// InvokerStatus reports per-scope endpoint health for operators.
func (h *DispatchHandler) InvokerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, dto.OK(h.invokers.Snapshots()))
}

func (h *DispatchHandler) respondError(c *gin.Context, err error) {
	if dispatch.IsUnavailable(err) {
		h.log.Warn().Err(err).Msg("all backends unavailable")
		c.JSON(http.StatusServiceUnavailable, dto.Error("backends_unavailable", "every backend for this operation is currently failing"))
		return
	}

	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		c.JSON(platformErr.HTTPStatus(), dto.Error(string(platformErr.Type), platformErr.Message))
		return
	}

	h.log.Error().
		Err(err).
		Str("trace_id", observability.GetTraceID(c.Request.Context())).
		Msg("dispatch failed")
	c.JSON(http.StatusInternalServerError, dto.Error("internal_error", err.Error()))
}
