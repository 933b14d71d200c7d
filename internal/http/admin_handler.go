package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"parking-service/internal/http/middleware"
	"parking-service/internal/model"
	"parking-service/internal/repository"
	"parking-service/internal/service"
)

func (h *Handler) listTickets(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var filter repository.TicketFilter
	for _, val := range splitCSV(c.Query("state")) {
		filter.States = append(filter.States, model.TicketState(strings.ToLower(val)))
	}
	filter.Limit, filter.Offset = parsePaging(c)

	tickets, err := h.ticketService.List(c.Request.Context(), principal, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": tickets}))
}

func (h *Handler) seedTickets(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req struct {
		Count int `json:"count" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	created, err := h.ticketService.Seed(c.Request.Context(), principal, req.Count)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"requested": req.Count, "created": created}))
}

func (h *Handler) assignVehicle(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req struct {
		Plate           string                 `json:"plate" binding:"required"`
		Make            string                 `json:"make"`
		Model           string                 `json:"model"`
		Color           string                 `json:"color"`
		OwnerName       string                 `json:"owner_name"`
		OwnerPhone      string                 `json:"owner_phone"`
		PlateImageURL   string                 `json:"plate_image_url"`
		VehicleImageURL string                 `json:"vehicle_image_url"`
		CaptureMeta     map[string]interface{} `json:"capture_meta"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	vehicle, err := h.ticketService.AssignVehicle(c.Request.Context(), principal, c.Param("code"), service.AssignVehicleInput{
		Plate:           req.Plate,
		Make:            req.Make,
		Model:           req.Model,
		Color:           req.Color,
		OwnerName:       req.OwnerName,
		OwnerPhone:      req.OwnerPhone,
		PlateImageURL:   req.PlateImageURL,
		VehicleImageURL: req.VehicleImageURL,
		CaptureMeta:     req.CaptureMeta,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(vehicle))
}

func (h *Handler) confirmParking(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	ticket, err := h.ticketService.ConfirmParking(c.Request.Context(), principal, c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(ticket))
}

func (h *Handler) processExit(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	receipt, err := h.paymentService.ProcessExit(c.Request.Context(), principal, c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(receipt))
}

func (h *Handler) listPayments(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	filter := repository.PaymentFilter{TicketCode: c.Query("ticket_code")}
	for _, val := range splitCSV(c.Query("state")) {
		filter.States = append(filter.States, model.PaymentState(strings.ToLower(val)))
	}
	filter.Limit, filter.Offset = parsePaging(c)

	payments, err := h.paymentService.List(c.Request.Context(), principal, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": payments}))
}

func (h *Handler) validatePayment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid payment id"))
		return
	}

	payment, err := h.paymentService.Validate(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(payment))
}

func (h *Handler) rejectPayment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid payment id"))
		return
	}

	var req struct {
		Reason         string           `json:"reason" binding:"required"`
		AcceptedAmount *decimal.Decimal `json:"accepted_amount"`
		OverpaidAmount *decimal.Decimal `json:"overpaid_amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	payment, err := h.paymentService.Reject(c.Request.Context(), principal, id, service.RejectPaymentInput{
		Reason:         req.Reason,
		AcceptedAmount: req.AcceptedAmount,
		OverpaidAmount: req.OverpaidAmount,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(payment))
}

func (h *Handler) listHistory(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	filter := repository.HistoryFilter{
		Plate:      c.Query("plate"),
		TicketCode: c.Query("ticket_code"),
	}
	filter.Limit, filter.Offset = parsePaging(c)

	summaries, err := h.historyService.Summaries(c.Request.Context(), principal, filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": summaries}))
}

func (h *Handler) getHistory(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid vehicle id"))
		return
	}

	detail, err := h.historyService.Detail(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(detail))
}

func (h *Handler) rebuildHistory(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid vehicle id"))
		return
	}

	summary, err := h.historyService.Rebuild(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(summary))
}

func (h *Handler) subscribeStaff(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	sub, err := h.subscriptionService.SubscribeStaff(c.Request.Context(), principal, service.SubscribeInput{
		Endpoint: req.Endpoint,
		Keys:     req.Keys,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(sub))
}

func (h *Handler) listOutbox(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	limit, _ := parsePaging(c)
	status := model.OutboxStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	rows, err := h.subscriptionService.Outbox(c.Request.Context(), principal, status, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"items": rows}))
}
