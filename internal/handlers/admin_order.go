package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/models"
	"storeapi/internal/services"
)

type updateOrderStatusRequest struct {
	Status                string     `json:"status" binding:"required"`
	Note                  string     `json:"note"`
	TrackingNumber        string     `json:"trackingNumber"`
	ShippingProvider      string     `json:"shippingProvider"`
	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate"`
}

type updatePaymentStatusRequest struct {
	Status        string `json:"status" binding:"required"`
	TransactionID string `json:"transactionId"`
	Note          string `json:"note"`
}

type addOrderNoteRequest struct {
	Note     string `json:"note" binding:"required"`
	NoteType string `json:"noteType"`
}

type verifyPaymentRequest struct {
	OrderID       string `json:"orderId" binding:"required"`
	Success       *bool  `json:"success" binding:"required"`
	TransactionID string `json:"transactionId"`
	Method        string `json:"method"`
	Message       string `json:"message"`
}

/* =========================
   STATUS & PAYMENT
========================= */

func UpdateOrderStatus(orders *services.OrderService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /orders/:id/status"
		defer handlePanic(c, route)

		orderID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}
		var req updateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		order, err := orders.AdminUpdateOrderStatus(ctx, orderID, services.StatusUpdate{
			Status:                strings.ToLower(strings.TrimSpace(req.Status)),
			Note:                  req.Note,
			TrackingNumber:        req.TrackingNumber,
			ShippingProvider:      req.ShippingProvider,
			EstimatedDeliveryDate: req.EstimatedDeliveryDate,
		}, optionalUserID(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func UpdatePaymentStatus(orders *services.OrderService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /orders/:id/payment"
		defer handlePanic(c, route)

		orderID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}
		var req updatePaymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		order, err := orders.AdminUpdatePaymentStatus(ctx, orderID, services.PaymentUpdate{
			Status:        strings.ToLower(strings.TrimSpace(req.Status)),
			TransactionID: req.TransactionID,
			Note:          req.Note,
		}, optionalUserID(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// VerifyPayment receives a payment provider's verdict, relayed by a trusted
// admin-side integration.
func VerifyPayment(orders *services.OrderService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/verify"
		defer handlePanic(c, route)

		var req verifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		orderID, err := primitive.ObjectIDFromHex(req.OrderID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid orderId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		order, err := orders.VerifyPayment(ctx, services.PaymentOutcome{
			OrderID:       orderID,
			Success:       *req.Success,
			TransactionID: req.TransactionID,
			Method:        models.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.Method))),
			Message:       req.Message,
		})
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

/* =========================
   NOTES
========================= */

func AddOrderNote(orders *services.OrderService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/notes"
		defer handlePanic(c, route)

		orderID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}
		var req addOrderNoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		note, err := orders.AddNote(ctx, orderID, req.Note, strings.ToLower(strings.TrimSpace(req.NoteType)), optionalUserID(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, note)
	}
}

func GetOrderNotes(orders *services.OrderService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id/notes"
		defer handlePanic(c, route)

		orderID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		notes, err := orders.ListNotes(ctx, orderID)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notes": notes})
	}
}

/* =========================
   SOFT DELETE
========================= */

func DeleteOrder(orders *services.OrderService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /orders/:id"
		defer handlePanic(c, route)

		orderID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		if _, err := orders.SoftDelete(ctx, orderID); err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	}
}

func RestoreOrder(orders *services.OrderService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /orders/:id/restore"
		defer handlePanic(c, route)

		orderID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		order, err := orders.Restore(ctx, orderID)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

/* =========================
   DASHBOARD
========================= */

func GetDashboard(dashboards *services.DashboardService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/dashboard"
		defer handlePanic(c, route)

		top, _ := strconv.ParseInt(c.Query("top"), 10, 64)
		recent, _ := strconv.ParseInt(c.Query("recent"), 10, 64)

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		dashboard, err := dashboards.Get(ctx, services.DashboardQuery{
			Period:  strings.ToLower(c.Query("period")),
			GroupBy: strings.ToLower(c.Query("groupBy")),
			TopN:    top,
			RecentN: recent,
		})
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, dashboard)
	}
}
