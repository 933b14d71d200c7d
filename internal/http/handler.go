package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"parking-service/internal/model"
	"parking-service/internal/service"
)

type Handler struct {
	ticketService       *service.TicketService
	paymentService      *service.PaymentService
	historyService      *service.HistoryService
	subscriptionService *service.SubscriptionService
	log                 zerolog.Logger
}

func NewHandler(
	ticketService *service.TicketService,
	paymentService *service.PaymentService,
	historyService *service.HistoryService,
	subscriptionService *service.SubscriptionService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		ticketService:       ticketService,
		paymentService:      paymentService,
		historyService:      historyService,
		subscriptionService: subscriptionService,
		log:                 log,
	}
}

func (h *Handler) getTicket(c *gin.Context) {
	view, err := h.ticketService.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(view))
}

type submitPaymentRequest struct {
	Method            string           `json:"method" binding:"required"`
	AmountPaid        decimal.Decimal  `json:"amount_paid"`
	AmountPaidForeign *decimal.Decimal `json:"amount_paid_foreign"`
	ExchangeRate      *decimal.Decimal `json:"exchange_rate"`
	Reference         string           `json:"reference"`
	Bank              string           `json:"bank"`
	Phone             string           `json:"phone"`
	IDDocument        string           `json:"id_document"`
	ReceiptImageURL   string           `json:"receipt_image_url"`
}

func (h *Handler) submitPayment(c *gin.Context) {
	var req submitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	payment, err := h.paymentService.Submit(c.Request.Context(), c.Param("code"), service.SubmitPaymentInput{
		Method:            model.PaymentMethod(strings.ToLower(strings.TrimSpace(req.Method))),
		AmountPaid:        req.AmountPaid,
		AmountPaidForeign: req.AmountPaidForeign,
		ExchangeRate:      req.ExchangeRate,
		Reference:         req.Reference,
		Bank:              req.Bank,
		Phone:             req.Phone,
		IDDocument:        req.IDDocument,
		ReceiptImageURL:   req.ReceiptImageURL,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(payment))
}

func (h *Handler) setPlannedExit(c *gin.Context) {
	var req struct {
		Offset string `json:"offset" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	offset := model.PlannedExitOffset(strings.ToLower(strings.TrimSpace(req.Offset)))
	ticket, err := h.ticketService.SetPlannedExit(c.Request.Context(), c.Param("code"), offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(ticket))
}

type subscribeRequest struct {
	Endpoint string                 `json:"endpoint" binding:"required"`
	Keys     map[string]interface{} `json:"keys"`
}

func (h *Handler) subscribeCustomer(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	sub, err := h.subscriptionService.SubscribeCustomer(c.Request.Context(), c.Param("code"), service.SubscribeInput{
		Endpoint: req.Endpoint,
		Keys:     req.Keys,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(sub))
}

func (h *Handler) unsubscribe(c *gin.Context) {
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := h.subscriptionService.Unsubscribe(c.Request.Context(), req.Endpoint); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"status": "unsubscribed"}))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrStorage):
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("storage unavailable")
		c.JSON(http.StatusServiceUnavailable, errorResponse("storage unavailable"))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func parsePaging(c *gin.Context) (limit, offset int) {
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("limit"))); err == nil {
		limit = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(c.Query("offset"))); err == nil {
		offset = v
	}
	return limit, offset
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

type responseEnvelope struct {
	Data interface{} `json:"data"`
}

func successResponse(data interface{}) responseEnvelope {
	return responseEnvelope{Data: data}
}

func errorResponse(msg string) gin.H {
	return gin.H{"error": msg}
}
