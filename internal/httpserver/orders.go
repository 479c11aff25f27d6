package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"shopapi/internal/domain"
	orderrepo "shopapi/internal/repository/order"
	ordersvc "shopapi/internal/service/order"

	"github.com/gin-gonic/gin"
)

func (h *handlers) respondOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	default:
		h.logger.Printf("order handler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return 0, false
	}
	return id, true
}

type listOrdersQuery struct {
	Page          int    `form:"page,default=1"`
	Limit         int    `form:"limit,default=10"`
	Status        string `form:"status"`
	PaymentStatus string `form:"payment_status"`
	Search        string `form:"search"`
	StartDate     string `form:"start_date"`
	EndDate       string `form:"end_date"`
}

func (h *handlers) listOrders(c *gin.Context) {
	var q listOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 10
	}

	f := orderrepo.ListFilter{
		Status:        q.Status,
		PaymentStatus: q.PaymentStatus,
		Search:        q.Search,
		Page:          q.Page,
		Limit:         q.Limit,
	}
	if q.StartDate != "" {
		t, err := time.Parse("2006-01-02", q.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date, want YYYY-MM-DD"})
			return
		}
		f.StartDate = &t
	}
	if q.EndDate != "" {
		t, err := time.Parse("2006-01-02", q.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date, want YYYY-MM-DD"})
			return
		}
		// Inclusive end of day.
		t = t.Add(24*time.Hour - time.Nanosecond)
		f.EndDate = &t
	}

	orders, total, err := h.deps.OrderSvc.List(c.Request.Context(), identityFrom(c), f)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	pages := (total + q.Limit - 1) / q.Limit
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"pagination": gin.H{
			"page":  q.Page,
			"limit": q.Limit,
			"total": total,
			"pages": pages,
		},
	})
}

func (h *handlers) getOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	order, txs, err := h.deps.OrderSvc.Get(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "transactions": txs})
}

type updateStatusRequest struct {
	Status         string  `json:"status" binding:"required"`
	TrackingNumber *string `json:"tracking_number"`
	Notes          *string `json:"notes"`
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}

	order, err := h.deps.OrderSvc.UpdateStatus(c.Request.Context(), id, ordersvc.StatusEdit{
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
		Notes:          req.Notes,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
			h.respondOrderError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order status updated", "order": order})
}

type updatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

func (h *handlers) updatePaymentStatus(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req updatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_status required"})
		return
	}

	order, err := h.deps.OrderSvc.SetPaymentStatus(c.Request.Context(), id, req.PaymentStatus)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.respondOrderError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payment status updated", "order": order})
}

func (h *handlers) deleteOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	order, err := h.deps.OrderSvc.Delete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.respondOrderError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order deleted", "order_number": order.OrderNumber})
}

func (h *handlers) orderStats(c *gin.Context) {
	period := 30
	if raw := c.Query("period"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 || p > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period must be 1-365 days"})
			return
		}
		period = p
	}

	stats, err := h.deps.OrderSvc.Stats(c.Request.Context(), period)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
