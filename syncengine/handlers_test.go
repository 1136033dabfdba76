package syncengine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/syncengine"
)

func testRouter(engine *syncengine.Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/sales", syncengine.CreateSaleHandler(engine))
	r.POST("/api/sales/:id/cancel", syncengine.CancelSaleHandler(engine))
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCancelSaleAppliesDeltaOnce(t *testing.T) {
	openTestStore(t)
	ctx := context.Background()

	if _, err := models.CreateVendorStat(ctx, &models.NewVendorStat{ID: "v1", Name: "Vendor v1"}); err != nil {
		t.Fatalf("CreateVendorStat: %v", err)
	}

	engine, _ := testEngine(syncengine.NewMemorySharedStore(), &captureFeed{})
	r := testRouter(engine)

	sale, err := models.CreateSaleRecord(ctx, &models.NewSaleRecord{
		VendorId:      "v1",
		VendorName:    "Vendor v1",
		Items:         []models.SaleItem{{Name: "item", UnitPrice: decimal.RequireFromString("100"), Quantity: 1}},
		TotalAmount:   decimal.RequireFromString("100"),
		PaymentMethod: models.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("CreateSaleRecord: %v", err)
	}
	if _, err := models.ApplySaleDelta(ctx, "v1", sale.TotalAmount); err != nil {
		t.Fatalf("ApplySaleDelta: %v", err)
	}

	// First cancel removes the creation delta; the retry must change
	// nothing.
	for i := 0; i < 2; i++ {
		if w := postJSON(t, r, "/api/sales/"+sale.ID+"/cancel", ""); w.Code != http.StatusOK {
			t.Fatalf("cancel %d: status %d, body %s", i+1, w.Code, w.Body.String())
		}
	}

	stat, err := models.GetVendorStat(ctx, "v1")
	if err != nil {
		t.Fatalf("GetVendorStat: %v", err)
	}
	if !stat.DailySales.IsZero() || !stat.TotalSales.IsZero() {
		t.Fatalf("one cancellation must remove the delta exactly once, counters: daily=%s total=%s",
			stat.DailySales, stat.TotalSales)
	}

	canceled, err := models.GetSaleRecord(ctx, sale.ID)
	if err != nil {
		t.Fatalf("GetSaleRecord: %v", err)
	}
	if !canceled.Canceled {
		t.Fatal("expected the sale canceled after the retried request")
	}
}
