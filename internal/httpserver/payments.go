package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"shopapi/internal/domain"
	"shopapi/internal/gateway"
	ordersvc "shopapi/internal/service/order"

	"github.com/gin-gonic/gin"
)

type createIntentRequest struct {
	Amount          float64                 `json:"amount" binding:"required,gt=0"`
	Currency        string                  `json:"currency"`
	OrderItems      []ordersvc.ItemRequest  `json:"order_items" binding:"required,min=1"`
	ShippingAddress *domain.Address         `json:"shipping_address" binding:"required"`
	BillingAddress  *domain.Address         `json:"billing_address"`
	Notes           string                  `json:"notes"`
}

func (h *handlers) createPaymentIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment data", "details": err.Error()})
		return
	}

	res, err := h.deps.OrderSvc.Assemble(c.Request.Context(), identityFrom(c), ordersvc.AssembleInput{
		Items:           req.OrderItems,
		Amount:          req.Amount,
		Currency:        req.Currency,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProductUnavailable),
			errors.Is(err, domain.ErrInsufficientStock),
			errors.Is(err, domain.ErrAmountMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrGatewayProtocol):
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable"})
		default:
			h.logger.Printf("create payment intent: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process payment"})
		}
		return
	}

	if h.deps.Metrics != nil {
		h.deps.Metrics.OrdersCreated.Inc()
	}
	c.JSON(http.StatusOK, res)
}

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
	OrderID         int64  `json:"order_id" binding:"required,min=1"`
}

// confirmPayment is the synchronous reconciliation path: the client reports
// back after finishing the gateway flow, we retrieve the authoritative
// intent state and feed it to the engine. A webhook racing this call is
// safe; whichever arrives second becomes a no-op.
func (h *handlers) confirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid confirmation data", "details": err.Error()})
		return
	}

	identity := identityFrom(c)
	order, _, err := h.deps.OrderSvc.Get(c.Request.Context(), identity, req.OrderID)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	intent, err := h.deps.Gateway.RetrieveIntent(c.Request.Context(), req.PaymentIntentID)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayProtocol) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway returned an unusable response"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not reach payment gateway"})
		return
	}

	outcome, err := h.deps.Reconciler.Apply(c.Request.Context(), order.ID, intent.Result())
	if err != nil {
		if errors.Is(err, domain.ErrReconciliation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Printf("confirm payment: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not confirm payment"})
		return
	}

	if outcome.PaymentStatus == domain.PaymentPaid {
		c.JSON(http.StatusOK, gin.H{
			"message":        "payment confirmed",
			"order_number":   outcome.OrderNumber,
			"payment_status": outcome.PaymentStatus,
			"order_status":   outcome.OrderStatus,
		})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"error":          "payment not completed",
		"order_number":   outcome.OrderNumber,
		"payment_status": outcome.PaymentStatus,
		"order_status":   outcome.OrderStatus,
	})
}

// webhook ingests gateway-pushed events. Only a bad signature is rejected;
// unknown event types and events without usable metadata are acknowledged
// so the gateway stops redelivering them. Transient apply failures return
// 500 so the gateway retries the (idempotent) delivery.
func (h *handlers) webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	event, err := gateway.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.deps.WebhookSecret)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			h.countWebhook("unknown", "bad_signature")
			c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
			return
		}
		h.countWebhook("unknown", "malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	var status domain.GatewayStatus
	switch event.Type {
	case gateway.EventPaymentSucceeded:
		status = domain.GatewaySucceeded
	case gateway.EventPaymentFailed:
		status = domain.GatewayFailed
	default:
		h.logger.Printf("webhook: ignoring event type %s", event.Type)
		h.countWebhook(event.Type, "ignored")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	orderID, ok := event.Data.Object.OrderID()
	if !ok {
		// Anomaly, but never an error back to the gateway: that would
		// cause indefinite redelivery of an unusable event.
		h.logger.Printf("webhook: event %s (%s) has no order_id metadata", event.ID, event.Type)
		h.countWebhook(event.Type, "no_order_id")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	raw, _ := json.Marshal(event.Data.Object)
	_, err = h.deps.Reconciler.Apply(c.Request.Context(), orderID, domain.GatewayResult{
		TransactionID: event.Data.Object.ID,
		Status:        status,
		Raw:           raw,
	})
	if err != nil {
		if errors.Is(err, domain.ErrReconciliation) {
			// Permanent: redelivery can never succeed, so acknowledge.
			h.logger.Printf("webhook: event %s not applicable: %v", event.ID, err)
			h.countWebhook(event.Type, "not_applicable")
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		h.logger.Printf("webhook: apply event %s: %v", event.ID, err)
		h.countWebhook(event.Type, "error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
		return
	}

	h.countWebhook(event.Type, "applied")
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *handlers) countWebhook(eventType, result string) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.WebhookEvents.WithLabelValues(eventType, result).Inc()
	}
}

func (h *handlers) paymentMethods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"payment_methods": []gin.H{
			{
				"id":          "stripe",
				"name":        "Credit/Debit Card",
				"description": "Visa, Mastercard, American Express",
				"enabled":     true,
			},
			{
				"id":          "paypal",
				"name":        "PayPal",
				"description": "Pay with your PayPal account",
				"enabled":     false,
			},
		},
		"supported_currencies": []string{"EUR", "USD", "GBP"},
		"minimum_amount":       0.50,
	})
}

func (h *handlers) getTransaction(c *gin.Context) {
	tx, err := h.deps.OrderSvc.Transaction(c.Request.Context(), identityFrom(c), c.Param("id"))
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	resp := gin.H{
		"id":             tx.ID,
		"order_id":       tx.OrderID,
		"transaction_id": tx.TransactionID,
		"payment_method": tx.PaymentMethod,
		"amount":         tx.Amount,
		"currency":       tx.Currency,
		"status":         tx.Status,
		"created_at":     tx.CreatedAt,
	}
	if len(tx.GatewayResponse) > 0 {
		resp["gateway_response"] = json.RawMessage(tx.GatewayResponse)
	}
	c.JSON(http.StatusOK, gin.H{"transaction": resp})
}
