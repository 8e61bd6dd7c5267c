package handlers

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storeapi/internal/database"
	"storeapi/internal/services"
)

/*
GET /products
- only active products
- search matches the product name
*/
func GetProducts(store database.Store, catalog *services.CatalogService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), store); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		result, err := catalog.ListProducts(ctx, database.ProductFilter{
			ActiveOnly: true,
			Search:     strings.TrimSpace(c.Query("search")),
			Page:       page,
			Limit:      limit,
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
