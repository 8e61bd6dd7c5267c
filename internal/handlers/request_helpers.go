package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/apperrors"
	"storeapi/internal/database"
	"storeapi/internal/middleware"
	"storeapi/internal/services"
)

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		zerolog.Ctx(c.Request.Context()).Error().Str("route", route).Interface("panic", r).Msg("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func ensureDBConnection(ctx context.Context, store database.Store) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return store.Ping(checkCtx)
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	zerolog.Ctx(c.Request.Context()).Warn().Str("route", route).Int("status", status).Msg(message)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindInvalidStatus:
		return http.StatusConflict
	case apperrors.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError maps a service error onto the API's error body.
// Internal causes are logged and never echoed.
func respondServiceError(c *gin.Context, route string, err error) {
	logger := zerolog.Ctx(c.Request.Context())

	if errors.Is(err, context.DeadlineExceeded) {
		logger.Error().Err(err).Str("route", route).Msg("request timed out")
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
		return
	}

	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperrors.KindInternal {
		logger.Error().Err(err).Str("route", route).Msg("internal error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	status := statusForKind(appErr.Kind)
	logger.Warn().Str("route", route).Int("status", status).Str("kind", string(appErr.Kind)).Msg(appErr.Message)

	body := gin.H{"error": appErr.Message, "code": string(appErr.Kind)}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(status, body)
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			case "email":
				details = append(details, fmt.Sprintf("%s must be a valid email", field))
			case "min", "gte":
				details = append(details, fmt.Sprintf("%s must be at least %s", field, fieldError.Param()))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body", "details": err.Error()})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func parseObjectIDParam(c *gin.Context, name, route string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, "invalid id")
		return primitive.NilObjectID, false
	}
	return id, true
}

func parseObjectIDs(raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, value := range raw {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", value)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func callerFromContext(c *gin.Context) services.Caller {
	id, ok := middleware.UserID(c)
	switch {
	case middleware.IsAdmin(c) && ok:
		return services.AdminCaller(id)
	case middleware.IsAdmin(c):
		return services.Caller{Admin: true}
	case ok:
		return services.UserCaller(id)
	}
	return services.GuestCaller()
}

// currentUserID is only called behind UserAuth, which guarantees the id.
func currentUserID(c *gin.Context) primitive.ObjectID {
	id, _ := middleware.UserID(c)
	return id
}

func optionalUserID(c *gin.Context) *primitive.ObjectID {
	if id, ok := middleware.UserID(c); ok {
		return &id
	}
	return nil
}

var errInvalidProductID = errors.New("invalid productId")
