package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"shopapi/internal/domain"

	"github.com/gin-gonic/gin"
)

func (h *handlers) getCart(c *gin.Context) {
	identity := identityFrom(c)
	items, err := h.deps.CartRepo.ListByUser(c.Request.Context(), identity.UserID)
	if err != nil {
		h.logger.Printf("cart handler: list user=%d: %v", identity.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

type addToCartRequest struct {
	ProductID int64 `json:"product_id" binding:"required,min=1"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

func (h *handlers) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id and positive quantity required"})
		return
	}

	p, err := h.deps.ProductRepo.GetActiveByID(c.Request.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.logger.Printf("cart handler: product lookup %d: %v", req.ProductID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if p.StockQuantity < req.Quantity {
		c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient stock", "available": p.StockQuantity})
		return
	}

	identity := identityFrom(c)
	if err := h.deps.CartRepo.AddItem(c.Request.Context(), identity.UserID, req.ProductID, req.Quantity); err != nil {
		h.logger.Printf("cart handler: add user=%d product=%d: %v", identity.UserID, req.ProductID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "added to cart"})
}

func (h *handlers) removeFromCart(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	identity := identityFrom(c)
	if err := h.deps.CartRepo.RemoveItem(c.Request.Context(), identity.UserID, productID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not in cart"})
			return
		}
		h.logger.Printf("cart handler: remove user=%d product=%d: %v", identity.UserID, productID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed from cart"})
}
