package controllers_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-order/config"
	"github.com/yeremiapane/table-order/database"
	"github.com/yeremiapane/table-order/models"
	"github.com/yeremiapane/table-order/router"
	"github.com/yeremiapane/table-order/services"
	"github.com/yeremiapane/table-order/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.SilenceLoggers()
	os.Exit(m.Run())
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupTestApp(t *testing.T) (*gin.Engine, *services.App) {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:"+filepath.Join(t.TempDir(), "api.db")+"?_busy_timeout=5000&_txlock=immediate")
	t.Setenv("NOTIFY_AMQP_URL", "")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("FRONTEND_URL", "*")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	db, err := config.InitDB(cfg)
	require.NoError(t, err)

	app, err := services.NewApp(context.Background(), cfg, db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Drain(context.Background()) })

	require.NoError(t, database.Bootstrap(context.Background(), app.Pool, database.SeedConfig{
		Tables:        6,
		AdminUsername: "admin",
		AdminPassword: "1234",
	}))
	return router.SetupRouter(app, cfg), app
}

func doRequest(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func login(t *testing.T, r http.Handler) string {
	t.Helper()
	w := doRequest(t, r, http.MethodPost, "/admin/login", "", gin.H{"username": "admin", "password": "1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, w, &data)
	require.NotEmpty(t, data.AccessToken)
	return data.AccessToken
}

func TestHealth(t *testing.T) {
	r, app := setupTestApp(t)

	w := doRequest(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w, nil).Message)

	require.NoError(t, app.Pool.Drain(context.Background()))
	w = doRequest(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w, nil).Message)
}

func TestLogin(t *testing.T) {
	r, _ := setupTestApp(t)
	login(t, r)

	w := doRequest(t, r, http.MethodPost, "/admin/login", "", gin.H{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, r, http.MethodPost, "/admin/login", "", gin.H{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderEndpoint(t *testing.T) {
	r, _ := setupTestApp(t)

	w := doRequest(t, r, http.MethodPost, "/orders", "", gin.H{"table_id": 5, "total": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decode(t, w, nil).Status)

	w = doRequest(t, r, http.MethodPost, "/orders", "", gin.H{"table_id": 99, "session_id": "s1", "total": 10})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, r, http.MethodPost, "/orders", "", gin.H{
		"table_id":      5,
		"session_id":    "s1",
		"total":         250,
		"customer_name": "Ravi",
		"items":         []gin.H{{"name": "Biryani", "quantity": 1, "price": 250}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	env := decode(t, w, &order)
	assert.True(t, env.Status)
	assert.NotZero(t, order.ID)
	assert.Equal(t, models.OrderPending, order.Status)

	var tables []models.Table
	decode(t, doRequest(t, r, http.MethodGet, "/tables", "", nil), &tables)
	require.Len(t, tables, 6)
	assert.Equal(t, models.TableReserved, tables[4].Status)

	var mine []models.Order
	decode(t, doRequest(t, r, http.MethodGet, "/orders/table/5?session_id=s1", "", nil), &mine)
	assert.Len(t, mine, 1)

	var others []models.Order
	decode(t, doRequest(t, r, http.MethodGet, "/orders/table/5", "", nil), &others)
	assert.Empty(t, others)

	var bySession []models.Order
	decode(t, doRequest(t, r, http.MethodGet, "/orders/session/s1", "", nil), &bySession)
	assert.Len(t, bySession, 1)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	r, _ := setupTestApp(t)

	for _, path := range []string{"/orders", "/income", "/stats/daily", "/stats/monthly", "/stats/monthly/csv"} {
		w := doRequest(t, r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := doRequest(t, r, http.MethodPut, "/orders/1/pay", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPayFlowAndStats(t *testing.T) {
	r, _ := setupTestApp(t)
	token := login(t, r)

	w := doRequest(t, r, http.MethodPost, "/orders", "", gin.H{
		"table_id":   5,
		"session_id": "s1",
		"total":      250,
		"items":      []gin.H{{"name": "Biryani", "quantity": 2, "price": 125}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var order models.Order
	decode(t, w, &order)

	w = doRequest(t, r, http.MethodPut, "/orders/abc/pay", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodPut, "/orders/999/pay", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, r, http.MethodPut, "/orders/"+itoa(order.ID), token, gin.H{"status": "cooking"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodPut, "/orders/"+itoa(order.ID), token, gin.H{"status": "  preparing "})
	require.Equal(t, http.StatusOK, w.Code)
	var updated struct {
		OrderID uint   `json:"order_id"`
		Status  string `json:"status"`
	}
	decode(t, w, &updated)
	assert.Equal(t, order.ID, updated.OrderID)
	assert.Equal(t, models.OrderPreparing, updated.Status)

	w = doRequest(t, r, http.MethodPut, "/orders/"+itoa(order.ID)+"/pay", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tables []models.Table
	decode(t, doRequest(t, r, http.MethodGet, "/tables", "", nil), &tables)
	assert.Equal(t, models.TableFree, tables[4].Status)

	var income models.IncomeSummary
	decode(t, doRequest(t, r, http.MethodGet, "/income", token, nil), &income)
	assert.Equal(t, 250.0, income.TotalIncome)

	var daily []models.DailyStat
	decode(t, doRequest(t, r, http.MethodGet, "/stats/daily", token, nil), &daily)
	require.Len(t, daily, 1)
	assert.EqualValues(t, 1, daily[0].TotalOrders)

	var monthly []models.MonthlyStat
	decode(t, doRequest(t, r, http.MethodGet, "/stats/monthly", token, nil), &monthly)
	require.Len(t, monthly, 1)
	assert.Equal(t, 250.0, monthly[0].TotalIncome)

	w = doRequest(t, r, http.MethodPut, "/orders/"+itoa(order.ID), token, gin.H{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodGet, "/stats/monthly/csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "orders_this_month.csv")

	rows, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Order ID", rows[0][0])
	assert.Equal(t, "Table 5", rows[1][3])
	assert.Equal(t, "Biryani x2", rows[1][6])
	assert.Equal(t, "250.00", rows[1][7])

	w = doRequest(t, r, http.MethodGet, "/stats/monthly/csv?month=2024-13", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateTableStatusEndpoint(t *testing.T) {
	r, _ := setupTestApp(t)
	token := login(t, r)

	w := doRequest(t, r, http.MethodPut, "/tables/2", token, gin.H{"status": "reserved"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, r, http.MethodPut, "/tables/2", token, gin.H{"status": "dirty"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(t, r, http.MethodPut, "/tables/42", token, gin.H{"status": "free"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(t, r, http.MethodPut, "/tables/2", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPoolUnavailableMapsTo503(t *testing.T) {
	r, app := setupTestApp(t)
	require.NoError(t, app.Pool.Drain(context.Background()))

	w := doRequest(t, r, http.MethodGet, "/orders/session/s1", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decode(t, w, nil).Message, "temporarily unavailable")

	w = doRequest(t, r, http.MethodPost, "/orders", "", gin.H{"session_id": "s1", "total": 10})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
