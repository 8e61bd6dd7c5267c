package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storeapi/internal/database/memory"
	"storeapi/internal/models"
	"storeapi/internal/notify"
	"storeapi/internal/services"
)

const testSecret = "handler-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	t       *testing.T
	router  *gin.Engine
	store   *memory.Store
	catalog *services.CatalogService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.New()
	logger := zerolog.Nop()
	catalog := services.NewCatalogService(store, logger)
	router := NewRouter(Deps{
		Store:              store,
		Carts:              services.NewCartService(store, logger),
		Orders:             services.NewOrderService(store, notify.NewLogNotifier(logger), logger, services.OrderOptions{}),
		Dashboards:         services.NewDashboardService(store.Stats(), logger),
		Catalog:            catalog,
		Logger:             logger,
		JWTSecret:          testSecret,
		RequestTimeout:     time.Second,
		CheckoutRatePerMin: 100,
	})
	return &testAPI{t: t, router: router, store: store, catalog: catalog}
}

func (a *testAPI) token(userID *primitive.ObjectID, role string) string {
	a.t.Helper()
	claims := jwt.MapClaims{"role": role, "exp": time.Now().Add(time.Hour).Unix()}
	if userID != nil {
		claims["userId"] = userID.Hex()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(a.t, err)
	return signed
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) product(name string, price float64, quantity int) models.Product {
	a.t.Helper()
	p, err := a.catalog.CreateProduct(context.Background(), services.NewProduct{Name: name, Price: price, Quantity: quantity})
	require.NoError(a.t, err)
	return p
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func customerBody() gin.H {
	return gin.H{
		"name":    "Lan Pham",
		"email":   "lan@example.com",
		"phone":   "0912345678",
		"address": "5 Le Loi, Hue",
	}
}

func TestCartCheckoutFlow(t *testing.T) {
	api := newTestAPI(t)
	user := primitive.NewObjectID()
	userToken := api.token(&user, "user")
	p := api.product("Kettle", 100000, 5)

	w := api.do(http.MethodPost, "/cart", userToken, gin.H{"productId": p.ID.Hex(), "quantity": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/cart/summary", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[services.CartSummary](t, w)
	assert.Equal(t, 300000.0, summary.TotalPrice)

	w = api.do(http.MethodPost, "/orders", userToken, gin.H{"customer": customerBody(), "fromCart": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[models.Order](t, w)
	assert.Equal(t, 300000.0, order.TotalAmount)
	assert.Equal(t, models.OrderPending, order.OrderStatus)

	w = api.do(http.MethodGet, "/cart", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cart := decode[models.Cart](t, w)
	assert.Empty(t, cart.Items)

	w = api.do(http.MethodGet, "/orders/"+order.ID.Hex(), userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	fetched := decode[models.Order](t, w)
	require.Len(t, fetched.Items, 1)
	assert.Equal(t, 3, fetched.Items[0].Quantity)
}

func TestCartBatchUpdate(t *testing.T) {
	api := newTestAPI(t)
	user := primitive.NewObjectID()
	userToken := api.token(&user, "user")
	p := api.product("Pillow", 150000, 4)

	w := api.do(http.MethodPost, "/cart", userToken, gin.H{"productId": p.ID.Hex(), "quantity": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	item := decode[models.CartItem](t, w)

	w = api.do(http.MethodPatch, "/cart/batch-update", userToken, gin.H{"items": []gin.H{
		{"id": item.ID.Hex(), "quantity": 3, "selected": false},
		{"id": primitive.NewObjectID().Hex(), "quantity": 1},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Items []services.CartLineResult `json:"items"`
	}](t, w)
	require.Len(t, body.Items, 2)
	assert.True(t, body.Items[0].Updated)
	assert.NotEmpty(t, body.Items[1].Error)

	w = api.do(http.MethodGet, "/cart/summary", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[services.CartSummary](t, w)
	assert.Equal(t, 450000.0, summary.TotalPrice)
	assert.Zero(t, summary.SelectedItems)

	w = api.do(http.MethodPatch, "/cart/batch-update", userToken, gin.H{"items": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartRequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCartUpdateToZeroRemoves(t *testing.T) {
	api := newTestAPI(t)
	user := primitive.NewObjectID()
	userToken := api.token(&user, "user")
	p := api.product("Fan", 450000, 2)

	w := api.do(http.MethodPost, "/cart", userToken, gin.H{"productId": p.ID.Hex(), "quantity": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	item := decode[models.CartItem](t, w)

	w = api.do(http.MethodPut, "/cart/"+item.ID.Hex(), userToken, gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":true}`, w.Body.String())

	w = api.do(http.MethodPut, "/cart/not-an-id", userToken, gin.H{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGuestCheckoutAndErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	p := api.product("Umbrella", 150000, 1)

	w := api.do(http.MethodPost, "/orders", "", gin.H{
		"customer": customerBody(),
		"items":    []gin.H{{"productId": p.ID.Hex(), "quantity": 2}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Contains(t, body["error"], "insufficient stock")
	assert.Equal(t, "validation", body["code"])

	w = api.do(http.MethodPost, "/orders", "", gin.H{
		"customer": customerBody(),
		"items":    []gin.H{{"productId": primitive.NewObjectID().Hex(), "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodPost, "/orders", "", gin.H{
		"customer": gin.H{"name": "x", "phone": "1", "address": "a", "email": "broken"},
		"items":    []gin.H{{"productId": p.ID.Hex(), "quantity": 1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation failed")

	w = api.do(http.MethodPost, "/orders", "", gin.H{
		"customer": customerBody(),
		"items":    []gin.H{{"productId": p.ID.Hex(), "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[models.Order](t, w)
	assert.Nil(t, order.UserID)

	w = api.do(http.MethodPost, "/orders", "Bearer-less", gin.H{"customer": customerBody()})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminOrderLifecycle(t *testing.T) {
	api := newTestAPI(t)
	owner := primitive.NewObjectID()
	adminID := primitive.NewObjectID()
	ownerToken := api.token(&owner, "user")
	adminToken := api.token(&adminID, "admin")
	p := api.product("Blender", 800000, 4)

	w := api.do(http.MethodPost, "/orders", ownerToken, gin.H{
		"customer":      customerBody(),
		"items":         []gin.H{{"productId": p.ID.Hex(), "quantity": 1}},
		"paymentMethod": "vnpay",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode[models.Order](t, w)
	path := "/orders/" + order.ID.Hex()

	w = api.do(http.MethodPatch, path+"/status", ownerToken, gin.H{"status": "processing"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/payments/verify", adminToken, gin.H{
		"orderId":       order.ID.Hex(),
		"success":       true,
		"transactionId": "VNP-42",
		"method":        "VNPAY",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decode[models.Order](t, w)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, models.OrderProcessing, paid.OrderStatus)

	w = api.do(http.MethodPatch, path+"/status", adminToken, gin.H{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPatch, path+"/status", adminToken, gin.H{"status": "shipped", "trackingNumber": "VN-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	shipped := decode[models.Order](t, w)
	assert.NotNil(t, shipped.EstimatedDeliveryDate)

	w = api.do(http.MethodPost, path+"/cancel", ownerToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodDelete, path, adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPost, path+"/notes", adminToken, gin.H{"note": "left the depot", "noteType": "general"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodGet, path+"/notes", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "left the depot")
	assert.Contains(t, w.Body.String(), "VNP-42")

	w = api.do(http.MethodGet, "/orders/dashboard?period=week", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dashboard := decode[services.Dashboard](t, w)
	assert.Equal(t, "week", dashboard.Period)
	assert.Equal(t, 800000.0, dashboard.Revenue)

	w = api.do(http.MethodGet, "/orders/dashboard?groupBy=month", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dashboard = decode[services.Dashboard](t, w)
	assert.EqualValues(t, "month", dashboard.GroupBy)
	require.NotEmpty(t, dashboard.PaymentMethods)

	w = api.do(http.MethodGet, "/orders/dashboard", ownerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSoftDeleteAndRestoreEndpoints(t *testing.T) {
	api := newTestAPI(t)
	adminID := primitive.NewObjectID()
	adminToken := api.token(&adminID, "admin")
	p := api.product("Pillow", 90000, 3)

	w := api.do(http.MethodPost, "/orders", "", gin.H{
		"customer": customerBody(),
		"items":    []gin.H{{"productId": p.ID.Hex(), "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode[models.Order](t, w)

	w = api.do(http.MethodDelete, "/orders/"+order.ID.Hex(), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/orders", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode[services.OrderPage](t, w).Total)

	w = api.do(http.MethodGet, "/orders?includeDeleted=true", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[services.OrderPage](t, w).Total)

	w = api.do(http.MethodPatch, "/orders/"+order.ID.Hex()+"/restore", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	restored := decode[models.Order](t, w)
	assert.False(t, restored.Deleted)

	w = api.do(http.MethodPatch, "/orders/"+order.ID.Hex()+"/restore", adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodGet, "/orders?page=0", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminProducts(t *testing.T) {
	api := newTestAPI(t)
	adminID := primitive.NewObjectID()
	adminToken := api.token(&adminID, "admin")

	w := api.do(http.MethodPost, "/admin/api/products", adminToken, gin.H{"name": "Tray", "price": 50000, "quantity": 8, "discountPrice": 60000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/admin/api/products", adminToken, gin.H{"name": "Tray", "price": 50000, "quantity": 8, "discountPrice": 45000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Product](t, w)
	assert.Equal(t, 45000.0, created.EffectivePrice())

	w = api.do(http.MethodPut, "/admin/api/products/"+created.ID.Hex(), adminToken, gin.H{"price": 40000})
	assert.Equal(t, http.StatusBadRequest, w.Code, "a price cut below the discount must be rejected")

	w = api.do(http.MethodPut, "/admin/api/products/"+created.ID.Hex(), adminToken, gin.H{"price": 40000, "removeDiscount": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Product](t, w)
	assert.Nil(t, updated.DiscountPrice)

	w = api.do(http.MethodGet, "/admin/api/products?limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalPages":1`)

	w = api.do(http.MethodDelete, "/admin/api/products/"+created.ID.Hex(), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodGet, "/admin/api/products/"+created.ID.Hex(), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/admin/api/products", api.token(&adminID, "user"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPublicProductsHideInactive(t *testing.T) {
	api := newTestAPI(t)
	api.product("Oolong tea", 70000, 5)
	hidden := api.product("Oolong cup", 30000, 5)
	inactive := models.ProductInactive
	_, err := api.catalog.UpdateProduct(context.Background(), hidden.ID, services.ProductChanges{Status: &inactive})
	require.NoError(t, err)
	api.product("Rice cooker", 900000, 5)

	w := api.do(http.MethodGet, "/products?search=oolong", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Data []models.Product `json:"data"`
	}](t, w)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Oolong tea", body.Data[0].Name)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
