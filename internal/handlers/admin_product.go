package handlers

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storeapi/internal/database"
	"storeapi/internal/models"
	"storeapi/internal/services"
)

/* =======================
   REQUEST MODELS
======================= */

type ProductCreateRequest struct {
	Name          string   `json:"name" binding:"required"`
	Price         float64  `json:"price" binding:"required,gt=0"`
	DiscountPrice *float64 `json:"discountPrice"`
	Quantity      int      `json:"quantity" binding:"gte=0"`
	Status        string   `json:"status"`
	ImagePath     string   `json:"imagePath"`
}

type ProductUpdateRequest struct {
	Name           *string  `json:"name"`
	Price          *float64 `json:"price"`
	DiscountPrice  *float64 `json:"discountPrice"`
	RemoveDiscount bool     `json:"removeDiscount"`
	Quantity       *int     `json:"quantity"`
	Status         *string  `json:"status"`
	ImagePath      *string  `json:"imagePath"`
}

/* =======================
   GET (ADMIN) – LIST
======================= */

func GetAllProducts(catalog *services.CatalogService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		result, err := catalog.ListProducts(ctx, database.ProductFilter{
			Search: c.Query("search"),
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			respondServiceError(c, route, err)
			return
		}

		totalPages := int64(0)
		if result.Total > 0 {
			totalPages = int64(math.Ceil(float64(result.Total) / float64(result.Limit)))
		}
		c.JSON(http.StatusOK, gin.H{
			"data": result.Products,
			"pagination": gin.H{
				"page":       result.Page,
				"limit":      result.Limit,
				"total":      result.Total,
				"totalPages": totalPages,
			},
		})
	}
}

func GetProduct(catalog *services.CatalogService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/products/:id"
		defer handlePanic(c, route)

		id, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		product, err := catalog.GetProduct(ctx, id)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

/* =======================
   CREATE
======================= */

func CreateProduct(catalog *services.CatalogService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/products"
		defer handlePanic(c, route)

		var req ProductCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		product, err := catalog.CreateProduct(ctx, services.NewProduct{
			Name:          req.Name,
			Price:         req.Price,
			DiscountPrice: req.DiscountPrice,
			Quantity:      req.Quantity,
			Status:        models.ProductStatus(strings.ToLower(strings.TrimSpace(req.Status))),
			ImagePath:     req.ImagePath,
		})
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

/* =======================
   UPDATE
======================= */

func UpdateProduct(catalog *services.CatalogService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/products/:id"
		defer handlePanic(c, route)

		id, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}
		var req ProductUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		changes := services.ProductChanges{
			Name:           req.Name,
			Price:          req.Price,
			DiscountPrice:  req.DiscountPrice,
			RemoveDiscount: req.RemoveDiscount,
			Quantity:       req.Quantity,
			ImagePath:      req.ImagePath,
		}
		if req.Status != nil {
			status := models.ProductStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
			changes.Status = &status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		product, err := catalog.UpdateProduct(ctx, id, changes)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

/* =======================
   DELETE
======================= */

func DeleteProduct(catalog *services.CatalogService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/products/:id"
		defer handlePanic(c, route)

		id, ok := parseObjectIDParam(c, "id", route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		if err := catalog.DeleteProduct(ctx, id); err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
	}
}
