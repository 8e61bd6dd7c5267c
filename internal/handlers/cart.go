package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/services"
)

/* =========================
   REQUEST DTOs
========================= */

type addCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Notes     string `json:"notes"`
}

type updateCartItemRequest struct {
	// Zero or less removes the line.
	Quantity *int `json:"quantity" binding:"required"`
}

type deleteCartItemsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

type selectCartItemRequest struct {
	Selected *bool `json:"selected" binding:"required"`
}

type batchCartItemRequest struct {
	ID       string `json:"id" binding:"required"`
	Quantity *int   `json:"quantity"`
	Selected *bool  `json:"selected"`
}

type batchUpdateCartRequest struct {
	Items []batchCartItemRequest `json:"items" binding:"required,min=1,dive"`
}

type cartItemNotesRequest struct {
	Notes string `json:"notes"`
}

/* =========================
   CART
========================= */

func GetCart(carts *services.CartService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /cart"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		cart, err := carts.GetCart(ctx, currentUserID(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

func AddCartItem(carts *services.CartService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart"
		defer handlePanic(c, route)

		var req addCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		item, err := carts.AddItem(ctx, currentUserID(c), productID, req.Quantity, req.Notes)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func UpdateCartItem(carts *services.CartService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /cart/:id"
		defer handlePanic(c, route)

		itemID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}
		var req updateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		result, err := carts.UpdateItem(ctx, currentUserID(c), itemID, *req.Quantity)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func RemoveCartItem(carts *services.CartService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart/:id"
		defer handlePanic(c, route)

		itemID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		if err := carts.RemoveItem(ctx, currentUserID(c), itemID); err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "cart item removed"})
	}
}

func RemoveCartItems(carts *services.CartService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart/delete-many"
		defer handlePanic(c, route)

		var req deleteCartItemsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		ids, err := parseObjectIDs(req.IDs)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		deleted, err := carts.RemoveMany(ctx, currentUserID(c), ids)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}

func BatchUpdateCartItems(carts *services.CartService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /cart/batch-update"
		defer handlePanic(c, route)

		var req batchUpdateCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		changes := make([]services.CartLineChange, 0, len(req.Items))
		for _, item := range req.Items {
			itemID, err := primitive.ObjectIDFromHex(item.ID)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid id")
				return
			}
			changes = append(changes, services.CartLineChange{
				ItemID:   itemID,
				Quantity: item.Quantity,
				Selected: item.Selected,
			})
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		results, err := carts.BatchUpdate(ctx, currentUserID(c), changes)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": results})
	}
}

func SelectCartItem(carts *services.CartService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /cart/:id/selected"
		defer handlePanic(c, route)

		itemID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}
		var req selectCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		item, err := carts.SetSelected(ctx, currentUserID(c), itemID, *req.Selected)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func UpdateCartItemNotes(carts *services.CartService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /cart/:id/notes"
		defer handlePanic(c, route)

		itemID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}
		var req cartItemNotesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		item, err := carts.SetNotes(ctx, currentUserID(c), itemID, req.Notes)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func GetCartSummary(carts *services.CartService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /cart/summary"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		summary, err := carts.Summary(ctx, currentUserID(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
