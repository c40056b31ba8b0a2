package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rezamoosavidweb/bot-trade/internal/capital"
	"github.com/rezamoosavidweb/bot-trade/internal/cascade"
	"github.com/rezamoosavidweb/bot-trade/internal/signal"
	"github.com/rezamoosavidweb/bot-trade/pkg/bybit"
	"github.com/rezamoosavidweb/bot-trade/pkg/db"
)

const testSecret = "test-secret"

type fakeExchange struct {
	balance float64
	pnl     []bybit.ClosedPnL
}

func (f *fakeExchange) GetWalletBalance(context.Context, string) (float64, error) {
	return f.balance, nil
}

func (f *fakeExchange) GetClosedPnL(context.Context, int) ([]bybit.ClosedPnL, error) {
	return f.pnl, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	store := cascade.NewStore()
	store.Put(&cascade.Position{
		Symbol: "BTCUSDT", Side: signal.SideBuy, Entry: 100,
		Targets: []float64{110, 120}, Qty: 6, RemainingQty: 6,
		State: cascade.StateOpened, OpenedAt: time.Now(),
	})

	exchange := &fakeExchange{
		balance: 1234.56,
		pnl:     []bybit.ClosedPnL{{Symbol: "BTCUSDT", Side: "Buy", Qty: 6, ExitPrice: 110, ClosedPnl: 60}},
	}
	return NewServer(store, database.Journal(), capital.NewTracker(), exchange,
		SystemMeta{Demo: true, SettleCoin: "USDT", Version: "test"}, testSecret)
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := GenerateToken("ops", testSecret, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthIsPublic(t *testing.T) {
	s := testServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestPositionsRequireAuth(t *testing.T) {
	s := testServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestPositionsWithToken(t *testing.T) {
	s := testServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)
	req.Header.Set("Authorization", bearer(t))
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Positions []cascade.Position `json:"positions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Positions) != 1 || resp.Positions[0].Symbol != "BTCUSDT" {
		t.Fatalf("positions = %+v", resp.Positions)
	}
}

func TestStatsWithToken(t *testing.T) {
	s := testServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", bearer(t))
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestBalanceWithToken(t *testing.T) {
	s := testServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
	req.Header.Set("Authorization", bearer(t))
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Coin    string  `json:"coin"`
		Balance float64 `json:"balance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Coin != "USDT" || resp.Balance != 1234.56 {
		t.Fatalf("balance = %+v", resp)
	}
}

func TestClosedPnlWithToken(t *testing.T) {
	s := testServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/pnl", nil)
	req.Header.Set("Authorization", bearer(t))
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ClosedPnl []bybit.ClosedPnL `json:"closedPnl"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.ClosedPnl) != 1 || resp.ClosedPnl[0].ClosedPnl != 60 {
		t.Fatalf("closed pnl = %+v", resp.ClosedPnl)
	}
}

func TestRejectsExpiredToken(t *testing.T) {
	s := testServer(t)
	token, err := GenerateToken("ops", testSecret, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
