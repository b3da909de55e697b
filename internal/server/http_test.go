package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"LendLedger/internal/asset"
	"LendLedger/internal/core"
	"LendLedger/internal/event"
	"LendLedger/internal/lending"
	"LendLedger/internal/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()
	token := asset.NewTokenLedger()
	native := asset.NewNativeLedger()
	pool := uuid.New()
	eng, err := lending.NewEngine(lending.Params{InterestRate: 10, CollateralRatio: 150}, token, native, pool)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	persistCh := make(chan *event.Record, 1024)
	publishCh := make(chan *event.Record, 1024)
	c := core.New(eng, 1, persistCh, publishCh, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)

	health := observability.NewHealthChecker()
	health.SetReady(true)

	srv := New(c, nil, health, nil, zerolog.Nop())
	srv.EnableDevFaucet(token, native)

	ts := httptest.NewServer(srv.Router())
	return ts, func() {
		ts.Close()
		cancel()
	}
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestFullLifecycleOverHTTP(t *testing.T) {
	ts, done := newTestServer(t)
	defer done()

	lender := uuid.New().String()
	borrower := uuid.New().String()

	// Fund the lender and approve the pool via the dev faucet.
	resp, _ := postJSON(t, ts.URL+"/v1/admin/faucet", map[string]string{
		"account": lender, "amount": "1000", "asset": "settlement",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("faucet status = %d", resp.StatusCode)
	}
	resp, _ = postJSON(t, ts.URL+"/v1/admin/approve", map[string]string{
		"owner": lender, "amount": "1000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d", resp.StatusCode)
	}

	resp, body := postJSON(t, ts.URL+"/v1/lend", map[string]string{
		"account": lender, "amount": "1000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lend status = %d body = %v", resp.StatusCode, body)
	}
	if body["event_type"] != "FundsLent" {
		t.Fatalf("lend event_type = %v", body["event_type"])
	}

	// Collateral for the borrower.
	postJSON(t, ts.URL+"/v1/admin/faucet", map[string]string{
		"account": borrower, "amount": "150", "asset": "native",
	})
	resp, body = postJSON(t, ts.URL+"/v1/collateral/deposit", map[string]string{
		"account": borrower, "amount": "150",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deposit status = %d body = %v", resp.StatusCode, body)
	}

	resp, body = postJSON(t, ts.URL+"/v1/borrow", map[string]string{
		"account": borrower, "amount": "100",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("borrow status = %d body = %v", resp.StatusCode, body)
	}
	if body["event_type"] != "LoanIssued" {
		t.Fatalf("borrow event_type = %v", body["event_type"])
	}

	resp, body = getJSON(t, ts.URL+"/v1/accounts/"+borrower)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("account status = %d", resp.StatusCode)
	}
	if body["borrowed_principal"] != "100" {
		t.Fatalf("borrowed_principal = %v, want 100", body["borrowed_principal"])
	}
	if body["collateral_balance"] != "150" {
		t.Fatalf("collateral_balance = %v, want 150", body["collateral_balance"])
	}

	// Repay immediately: no measurable interest accrued.
	postJSON(t, ts.URL+"/v1/admin/approve", map[string]string{
		"owner": borrower, "amount": "200",
	})
	resp, body = postJSON(t, ts.URL+"/v1/repay", map[string]string{
		"account": borrower,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repay status = %d body = %v", resp.StatusCode, body)
	}
	if body["event_type"] != "LoanRepaid" {
		t.Fatalf("repay event_type = %v", body["event_type"])
	}

	resp, body = getJSON(t, ts.URL+"/v1/accounts/"+borrower+"/repayment")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repayment status = %d", resp.StatusCode)
	}
	if body["total_repayment"] != "0" {
		t.Fatalf("total_repayment after repay = %v, want 0", body["total_repayment"])
	}
}

func TestErrorStatusMapping(t *testing.T) {
	ts, done := newTestServer(t)
	defer done()

	account := uuid.New().String()

	// Repay with no loan: 409.
	resp, _ := postJSON(t, ts.URL+"/v1/repay", map[string]string{"account": account})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("repay without loan status = %d, want 409", resp.StatusCode)
	}

	// Borrow against an empty pool with no collateral: 422.
	postJSON(t, ts.URL+"/v1/admin/faucet", map[string]string{
		"account": account, "amount": "100", "asset": "native",
	})
	postJSON(t, ts.URL+"/v1/collateral/deposit", map[string]string{
		"account": account, "amount": "100",
	})
	resp, _ = postJSON(t, ts.URL+"/v1/borrow", map[string]string{
		"account": account, "amount": "100",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("under-collateralized borrow status = %d, want 422", resp.StatusCode)
	}

	// Zero amount: 400.
	resp, _ = postJSON(t, ts.URL+"/v1/collateral/deposit", map[string]string{
		"account": account, "amount": "0",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero deposit status = %d, want 400", resp.StatusCode)
	}

	// Garbage account id: 400.
	resp, _ = postJSON(t, ts.URL+"/v1/lend", map[string]string{
		"account": "not-a-uuid", "amount": "10",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad account status = %d, want 400", resp.StatusCode)
	}
}

func TestPoolEndpoint(t *testing.T) {
	ts, done := newTestServer(t)
	defer done()

	resp, body := getJSON(t, ts.URL+"/v1/pool")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pool status = %d", resp.StatusCode)
	}
	if body["balance"] != "0" {
		t.Fatalf("pool balance = %v, want 0", body["balance"])
	}
	if body["interest_rate"] != float64(10) {
		t.Fatalf("interest_rate = %v, want 10", body["interest_rate"])
	}
	if body["collateral_ratio"] != float64(150) {
		t.Fatalf("collateral_ratio = %v, want 150", body["collateral_ratio"])
	}
}

func TestPreviewInterestEndpoint(t *testing.T) {
	ts, done := newTestServer(t)
	defer done()

	year := int64(365 * 24 * 3600)
	url := fmt.Sprintf("%s/v1/interest/preview?principal=100&duration=%d", ts.URL, year)
	resp, body := getJSON(t, url)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview status = %d", resp.StatusCode)
	}
	if body["interest"] != "10" {
		t.Fatalf("interest = %v, want 10", body["interest"])
	}

	resp, _ = getJSON(t, ts.URL+"/v1/interest/preview?principal=abc&duration=1")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad principal status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts, done := newTestServer(t)
	defer done()

	resp, _ := getJSON(t, ts.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	resp, _ = getJSON(t, ts.URL+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", resp.StatusCode)
	}
}
