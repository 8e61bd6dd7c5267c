package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/database"
	"storeapi/internal/models"
	"storeapi/internal/services"
)

/* =========================
   REQUEST DTOs
========================= */

type createOrderItemRequest struct {
	ProductID string                 `json:"productId" binding:"required"`
	Quantity  int                    `json:"quantity" binding:"required,min=1"`
	Options   map[string]interface{} `json:"options"`
}

type createOrderCustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone" binding:"required"`
	Address string `json:"address" binding:"required"`
}

type createOrderRequest struct {
	Customer createOrderCustomerRequest `json:"customer" binding:"required"`
	// FromCart checks out the selected lines of the caller's cart; Items
	// is then ignored.
	FromCart      bool                     `json:"fromCart"`
	Items         []createOrderItemRequest `json:"items" binding:"omitempty,dive"`
	PaymentMethod string                   `json:"paymentMethod"`
	Currency      string                   `json:"currency"`
	ShippingFee   float64                  `json:"shippingFee" binding:"gte=0"`
	Tax           float64                  `json:"tax" binding:"gte=0"`
	Discount      float64                  `json:"discount" binding:"gte=0"`
	CouponCode    string                   `json:"couponCode"`
	Note          string                   `json:"note"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

/* =========================
   CREATE ORDER
========================= */

func CreateOrder(store database.Store, orders *services.OrderService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), store); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		input, err := buildOrderInput(req)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		order, err := orders.CreateOrder(ctx, input, optionalUserID(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}

		c.JSON(http.StatusCreated, order)
	}
}

func buildOrderInput(req createOrderRequest) (services.CreateOrderInput, error) {
	input := services.CreateOrderInput{
		Customer: models.CustomerInfo{
			Name:    req.Customer.Name,
			Email:   strings.ToLower(strings.TrimSpace(req.Customer.Email)),
			Phone:   req.Customer.Phone,
			Address: req.Customer.Address,
		},
		FromCart:      req.FromCart,
		PaymentMethod: models.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod))),
		Currency:      models.Currency(strings.ToUpper(strings.TrimSpace(req.Currency))),
		ShippingFee:   req.ShippingFee,
		Tax:           req.Tax,
		Discount:      req.Discount,
		CouponCode:    req.CouponCode,
		Note:          req.Note,
	}
	if req.FromCart {
		return input, nil
	}

	input.Lines = make([]services.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return services.CreateOrderInput{}, errInvalidProductID
		}
		input.Lines = append(input.Lines, services.OrderLine{
			ProductID: productID,
			Quantity:  item.Quantity,
			Options:   item.Options,
		})
	}
	return input, nil
}

/* =========================
   READ ORDERS
========================= */

func GetOrder(orders *services.OrderService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		orderID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		order, err := orders.GetOrder(ctx, orderID, callerFromContext(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func GetOrders(orders *services.OrderService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		includeDeleted, _ := strconv.ParseBool(c.DefaultQuery("includeDeleted", "false"))

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		result, err := orders.ListOrders(ctx, callerFromContext(c), services.ListOrdersInput{
			OrderStatus:    strings.TrimSpace(c.Query("status")),
			PaymentStatus:  strings.TrimSpace(c.Query("paymentStatus")),
			IncludeDeleted: includeDeleted,
			Page:           page,
			Limit:          limit,
		})
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

/* =========================
   CANCEL ORDER
========================= */

func CancelOrder(orders *services.OrderService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/cancel"
		defer handlePanic(c, route)

		orderID, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}
		var req cancelOrderRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		order, err := orders.CancelOrder(ctx, orderID, callerFromContext(c), req.Reason)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
