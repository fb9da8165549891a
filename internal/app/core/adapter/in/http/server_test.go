package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	memory_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ledger, err := memory_adapter.NewMutexLedger(nil, nil)
	if err != nil {
		t.Fatalf("NewMutexLedger() error = %v", err)
	}
	return NewServer(usecase.NewCoreUseCase(ledger)).Router()
}

func do(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestCreateAccount(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, http.MethodPost, "/accounts", `{"id": 1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["balance"]; got != "0" {
		t.Errorf("new account balance = %v, want \"0\"", got)
	}

	w = do(t, router, http.MethodPost, "/accounts", `{"id": 1}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", w.Code)
	}
}

func TestCreditDebitFlow(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/accounts", `{"id": 1}`)

	w := do(t, router, http.MethodPost, "/accounts/1/credit", `{"amount": "100", "description": "recharge"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("credit status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["kind"] != "credit" || body["amount"] != "100" || body["status"] != "completed" {
		t.Errorf("credit response = %v", body)
	}

	w = do(t, router, http.MethodPost, "/accounts/1/debit", `{"amount": "40"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("debit status = %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/accounts/1/balance", "")
	if w.Code != http.StatusOK {
		t.Fatalf("balance status = %d", w.Code)
	}
	if got := decode(t, w)["balance"]; got != "60" {
		t.Errorf("balance = %v, want \"60\"", got)
	}

	// 超額扣帳
	w = do(t, router, http.MethodPost, "/accounts/1/debit", `{"amount": "100"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over-debit status = %d, want 422", w.Code)
	}
	w = do(t, router, http.MethodGet, "/accounts/1/balance", "")
	if got := decode(t, w)["balance"]; got != "60" {
		t.Errorf("balance after rejected debit = %v, want \"60\"", got)
	}

	w = do(t, router, http.MethodGet, "/accounts/1/transactions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	data := decode(t, w)["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("transaction count = %d, want 2", len(data))
	}
	// 最新的在最前面
	first := data[0].(map[string]any)
	if first["kind"] != "debit" || first["amount"] != "40" {
		t.Errorf("first transaction = %v, want the debit of 40", first)
	}
}

func TestKindFilter(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/accounts", `{"id": 1}`)
	do(t, router, http.MethodPost, "/accounts/1/credit", `{"amount": "10"}`)
	do(t, router, http.MethodPost, "/accounts/1/debit", `{"amount": "3"}`)

	w := do(t, router, http.MethodGet, "/accounts/1/transactions?kind=credit", "")
	data := decode(t, w)["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("filtered count = %d, want 1", len(data))
	}

	w = do(t, router, http.MethodGet, "/accounts/1/transactions?kind=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus kind status = %d, want 400", w.Code)
	}
}

func TestInvalidAmounts(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/accounts", `{"id": 1}`)

	for _, body := range []string{
		`{"amount": "-5", "description": "x"}`,
		`{"amount": "0"}`,
		`{"amount": "abc"}`,
		`{"amount": "1.00001"}`,
		`{}`,
	} {
		w := do(t, router, http.MethodPost, "/accounts/1/debit", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("debit %s status = %d, want 400", body, w.Code)
		}
	}

	// 拒絕的請求不能留下紀錄
	w := do(t, router, http.MethodGet, "/accounts/1/transactions", "")
	if data := decode(t, w)["data"].([]any); len(data) != 0 {
		t.Errorf("transaction count = %d, want 0", len(data))
	}
}

func TestUnknownAccount(t *testing.T) {
	router := newTestRouter(t)

	if w := do(t, router, http.MethodGet, "/accounts/42/balance", ""); w.Code != http.StatusNotFound {
		t.Errorf("balance status = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/accounts/42/credit", `{"amount": "1"}`); w.Code != http.StatusNotFound {
		t.Errorf("credit status = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/accounts/42", ""); w.Code != http.StatusNotFound {
		t.Errorf("delete status = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/accounts/abc/balance", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
}

func TestStatsAndDaily(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/accounts", `{"id": 1}`)
	do(t, router, http.MethodPost, "/accounts/1/credit", `{"amount": "100"}`)
	do(t, router, http.MethodPost, "/accounts/1/debit", `{"amount": "30"}`)

	w := do(t, router, http.MethodGet, "/accounts/1/stats?days=7", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	stats := decode(t, w)
	if stats["total_credits"] != "100" || stats["total_debits"] != "30" || stats["net_change"] != "70" {
		t.Errorf("stats = %v", stats)
	}
	if stats["total_transactions"] != float64(2) {
		t.Errorf("total_transactions = %v, want 2", stats["total_transactions"])
	}

	w = do(t, router, http.MethodGet, "/accounts/1/daily?days=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("daily status = %d", w.Code)
	}
	days := decode(t, w)["data"].([]any)
	if len(days) != 2 {
		t.Fatalf("daily returned %d days, want 2", len(days))
	}
	today := days[1].(map[string]any)
	if today["total"] != "30" {
		t.Errorf("today total = %v, want \"30\"", today["total"])
	}
}

func TestIdempotentRetry(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/accounts", `{"id": 1}`)

	body := `{"amount": "50", "ref_id": "7f9c24e8-3b12-4a6f-91cd-5b4d1c0a8e77"}`
	w := do(t, router, http.MethodPost, "/accounts/1/credit", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("credit status = %d", w.Code)
	}
	first := decode(t, w)

	w = do(t, router, http.MethodPost, "/accounts/1/credit", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("retry status = %d", w.Code)
	}
	// 重試拿到的要是當初那筆交易
	retry := decode(t, w)
	if retry["id"] != first["id"] || retry["created_at"] != first["created_at"] {
		t.Errorf("retry response = %v, want original %v", retry, first)
	}

	w = do(t, router, http.MethodGet, "/accounts/1/balance", "")
	if got := decode(t, w)["balance"]; got != "50" {
		t.Errorf("balance after retry = %v, want \"50\"", got)
	}
}

func TestStoreFailureMapsTo500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "wal.log")
	journal, err := wal.NewWAL(path)
	if err != nil {
		t.Fatalf("NewWAL() error = %v", err)
	}
	ledger, err := memory_adapter.NewMutexLedger(nil, journal)
	if err != nil {
		t.Fatalf("NewMutexLedger() error = %v", err)
	}
	router := NewServer(usecase.NewCoreUseCase(ledger)).Router()

	do(t, router, http.MethodPost, "/accounts", `{"id": 1}`)
	if w := do(t, router, http.MethodPost, "/accounts/1/credit", `{"amount": "100"}`); w.Code != http.StatusCreated {
		t.Fatalf("credit status = %d: %s", w.Code, w.Body.String())
	}

	// 底層寫入壞掉之後，請求要回 500，餘額也不能動
	if err := journal.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w := do(t, router, http.MethodPost, "/accounts/1/debit", `{"amount": "40"}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("debit status = %d, want 500: %s", w.Code, w.Body.String())
	}
	w := do(t, router, http.MethodGet, "/accounts/1/balance", "")
	if got := decode(t, w)["balance"]; got != "100" {
		t.Errorf("balance after failed debit = %v, want \"100\"", got)
	}
}
