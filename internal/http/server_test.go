package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finledger/internal/auth"
	"finledger/internal/core"
	"finledger/internal/ledger"
	"finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/storage"
	"finledger/internal/storage/memory"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, cfg Config, ready Pinger) *Server {
	t.Helper()
	store := memory.New()
	attachments, err := storage.NewAttachmentStore(t.TempDir(), 1<<10)
	if err != nil {
		t.Fatalf("NewAttachmentStore: %v", err)
	}
	tokens := auth.NewJWTManager("test-secret", time.Hour)

	budgets := ledger.NewBudgetEngine(store, store)
	savings := ledger.NewSavingsEngine(store)
	bills := ledger.NewSplitBillEngine(store)
	svc := Services{
		Auth:      services.NewAuthService(auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost), tokens, store, nil),
		Expenses:  services.NewExpenseService(store, attachments, nil),
		Goals:     services.NewGoalService(store, savings, nil),
		Bills:     services.NewBillService(store, bills, nil),
		Budgets:   budgets,
		Dashboard: ledger.NewDashboard(store, budgets, savings, bills),
	}
	if ready == nil {
		ready = store
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS, cfg.RateLimitBurst = 1000, 1000
	}
	logger := log.New(log.Config{Output: io.Discard, Format: log.FormatJSON})
	s := NewServer(cfg, svc, tokens, ready, logger)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

// signedIn registers a fresh user and returns a client carrying its token.
func signedIn(t *testing.T, s *Server) *client {
	t.Helper()
	c := &client{t: t, h: s.Handler}
	rec := c.do("POST", "/api/auth/register", map[string]string{
		"email":       "ada@example.com",
		"displayName": "Ada",
		"password":    "correct horse",
	})
	expectStatus(t, rec, http.StatusCreated)
	c.token = decode[services.Session](t, rec).Token
	if c.token == "" {
		t.Fatal("register returned an empty token")
	}
	return c
}

func TestProfileEndpoints(t *testing.T) {
	s := newTestServer(t, Config{}, nil)
	c := signedIn(t, s)

	rec := c.do("GET", "/api/users/profile", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.User](t, rec); got.Email != "ada@example.com" || got.DisplayName != "Ada" {
		t.Fatalf("profile = %+v", got)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("profile leaks the password hash: %s", rec.Body.String())
	}

	rec = c.do("PUT", "/api/users/profile", map[string]string{"displayName": "  Ada Lovelace ", "email": "x@example.com"})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.User](t, rec); got.DisplayName != "Ada Lovelace" || got.Email != "ada@example.com" {
		t.Fatalf("updated profile = %+v", got)
	}

	rec = c.do("PUT", "/api/users/profile", map[string]string{})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.User](t, rec); got.DisplayName != "Ada Lovelace" {
		t.Fatalf("an absent name must leave the profile as it is, got %+v", got)
	}

	expectStatus(t, c.do("PUT", "/api/users/profile", map[string]string{"displayName": strings.Repeat("a", 101)}), http.StatusBadRequest)

	anon := &client{t: t, h: s.Handler}
	expectStatus(t, anon.do("GET", "/api/users/profile", nil), http.StatusUnauthorized)
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, Config{}, nil)
	c := &client{t: t, h: s.Handler}

	expectStatus(t, c.do("GET", "/healthz", nil), http.StatusOK)
	expectStatus(t, c.do("GET", "/readyz", nil), http.StatusOK)

	down := newTestServer(t, Config{}, failingPinger{})
	rec := (&client{t: t, h: down.Handler}).do("GET", "/readyz", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)
	if got := decode[map[string]any](t, rec)["status"]; got != "not_ready" {
		t.Errorf("status field = %v, want not_ready", got)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	s := newTestServer(t, Config{}, nil)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header"},
		{name: "wrong scheme", header: "Basic Zm9vOmJhcg=="},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/expenses", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.Handler.ServeHTTP(rec, req)
			expectStatus(t, rec, http.StatusUnauthorized)
			if rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, Config{}, nil)
	signedIn(t, s)
	c := &client{t: t, h: s.Handler}

	rec := c.do("POST", "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "correct horse"})
	expectStatus(t, rec, http.StatusOK)
	if decode[services.Session](t, rec).User.Email != "ada@example.com" {
		t.Error("login returned the wrong user")
	}

	rec = c.do("POST", "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "wrong password"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = c.do("POST", "/api/auth/register", map[string]string{"email": "ADA@example.com", "displayName": "Ada", "password": "correct horse"})
	expectStatus(t, rec, http.StatusConflict)
}

func TestExpenseLifecycle(t *testing.T) {
	s := newTestServer(t, Config{}, nil)
	c := signedIn(t, s)

	rec := c.do("POST", "/api/expenses", map[string]any{
		"amount": "12.345", "category": "Travel", "date": "2025-03-10", "description": "Train",
	})
	expectStatus(t, rec, http.StatusCreated)
	created := decode[core.Expense](t, rec)
	if !created.Amount.Equal(decimal.RequireFromString("12.35")) {
		t.Errorf("amount = %s, want 12.35", created.Amount)
	}

	rec = c.do("POST", "/api/expenses", map[string]any{"amount": "-1", "category": "Travel", "date": "2025-03-10"})
	expectStatus(t, rec, http.StatusBadRequest)
	if !strings.Contains(decode[errorBody](t, rec).Error, "amount") {
		t.Error("validation error should mention the amount")
	}

	expectStatus(t, c.do("GET", "/api/expenses/"+created.ID, nil), http.StatusOK)

	rec = c.do("PUT", "/api/expenses/"+created.ID, map[string]any{
		"amount": "20", "category": "Food & Dining", "date": "2025-03-11", "description": "Lunch",
	})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.Expense](t, rec).Category; got != "Food & Dining" {
		t.Errorf("category = %q after update", got)
	}

	rec = c.do("GET", "/api/expenses/category/Food%20&%20Dining", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]core.Expense](t, rec); len(got) != 1 {
		t.Errorf("by category returned %d expenses, want 1", len(got))
	}

	rec = c.do("GET", "/api/expenses/filter?from=2025-03-01&to=2025-03-31", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]core.Expense](t, rec); len(got) != 1 {
		t.Errorf("filter returned %d expenses, want 1", len(got))
	}
	expectStatus(t, c.do("GET", "/api/expenses/filter?from=2025-04-01&to=2025-03-01", nil), http.StatusBadRequest)

	rec = c.do("GET", "/api/expenses/stats/monthly?month=3&year=2025", nil)
	expectStatus(t, rec, http.StatusOK)
	stats := decode[core.MonthlyExpenseStats](t, rec)
	if stats.TotalTransactions != 1 || !stats.TotalAmount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("monthly stats = %+v", stats)
	}
	expectStatus(t, c.do("GET", "/api/expenses/stats/monthly?month=13&year=2025", nil), http.StatusBadRequest)

	rec = c.do("GET", "/api/expenses/categories", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]string](t, rec); len(got) != len(core.DefaultCategories) {
		t.Errorf("categories = %v, want the defaults only", got)
	}

	expectStatus(t, c.do("DELETE", "/api/expenses/"+created.ID, nil), http.StatusNoContent)
	expectStatus(t, c.do("GET", "/api/expenses/"+created.ID, nil), http.StatusNotFound)
}

func TestExpensesAreScopedToOwner(t *testing.T) {
	s := newTestServer(t, Config{}, nil)
	c := signedIn(t, s)

	rec := c.do("POST", "/api/expenses", map[string]any{"amount": "5", "category": "Other", "date": "2025-03-10"})
	expectStatus(t, rec, http.StatusCreated)
	id := decode[core.Expense](t, rec).ID

	other := &client{t: t, h: s.Handler}
	rec = other.do("POST", "/api/auth/register", map[string]string{"email": "bob@example.com", "displayName": "Bob", "password": "hunter2hunter2"})
	expectStatus(t, rec, http.StatusCreated)
	other.token = decode[services.Session](t, rec).Token

	expectStatus(t, other.do("GET", "/api/expenses/"+id, nil), http.StatusNotFound)
	rec = other.do("GET", "/api/expenses", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]core.Expense](t, rec); len(got) != 0 {
		t.Errorf("other owner sees %d expenses", len(got))
	}
}

func TestAttachmentUploadAndDownload(t *testing.T) {
	s := newTestServer(t, Config{MaxUploadBytes: 1 << 10}, nil)
	c := signedIn(t, s)

	rec := c.do("POST", "/api/expenses", map[string]any{"amount": "5", "category": "Other", "date": "2025-03-10"})
	expectStatus(t, rec, http.StatusCreated)
	id := decode[core.Expense](t, rec).ID

	upload := func(content []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "receipt.png")
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(content)
		mw.Close()

		req := httptest.NewRequest("POST", "/api/expenses/"+id+"/attachment", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+c.token)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		return rec
	}

	expectStatus(t, c.do("GET", "/api/expenses/"+id+"/attachment", nil), http.StatusNotFound)

	rec = upload([]byte("fake png bytes"))
	expectStatus(t, rec, http.StatusOK)
	if decode[core.Expense](t, rec).Attachment == "" {
		t.Fatal("attachment ref not set")
	}

	rec = c.do("GET", "/api/expenses/"+id+"/attachment", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "fake png bytes" {
		t.Errorf("downloaded %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "receipt.png") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	expectStatus(t, upload(bytes.Repeat([]byte("x"), 4<<10)), http.StatusRequestEntityTooLarge)
}

func TestBudgetEndpoints(t *testing.T) {
	s := newTestServer(t, Config{}, nil)
	c := signedIn(t, s)

	expectStatus(t, c.do("GET", "/api/budget", nil), http.StatusNotFound)

	rec := c.do("POST", "/api/budget", map[string]any{"month": 3, "year": 2025, "monthlyLimit": "500"})
	expectStatus(t, rec, http.StatusOK)

	c.do("POST", "/api/expenses", map[string]any{"amount": "125", "category": "Other", "date": "2025-03-10"})

	rec = c.do("GET", "/api/budget/3/2025", nil)
	expectStatus(t, rec, http.StatusOK)
	view := decode[core.BudgetView](t, rec)
	if !view.Spent.Equal(decimal.NewFromInt(125)) || !view.PercentUsed.Equal(decimal.NewFromInt(25)) {
		t.Errorf("budget view = spent %s, percent %s", view.Spent, view.PercentUsed)
	}

	expectStatus(t, c.do("GET", "/api/budget/13/2025", nil), http.StatusBadRequest)
	expectStatus(t, c.do("GET", "/api/budget/march/2025", nil), http.StatusBadRequest)
	expectStatus(t, c.do("POST", "/api/budget", map[string]any{"month": 3, "year": 2025, "monthlyLimit": "-5"}), http.StatusBadRequest)

	rec = c.do("POST", "/api/budget", map[string]any{"monthlyLimit": "300"})
	expectStatus(t, rec, http.StatusOK)
	now := core.PeriodOf(time.Now())
	if got := decode[core.BudgetView](t, rec); got.Month != now.Month || got.Year != now.Year {
		t.Errorf("budget period = %d/%d, want current %s", got.Month, got.Year, now)
	}
	expectStatus(t, c.do("GET", "/api/budget", nil), http.StatusOK)
}

func TestSavingsEndpoints(t *testing.T) {
	s := newTestServer(t, Config{}, nil)
	c := signedIn(t, s)

	rec := c.do("POST", "/api/savings/goals", map[string]any{"name": "Bike", "targetAmount": "100"})
	expectStatus(t, rec, http.StatusCreated)
	goal := decode[core.SavingsGoalView](t, rec)

	rec = c.do("POST", "/api/savings/goals/"+goal.ID+"/deposit", map[string]any{"amount": "60"})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.SavingsGoalView](t, rec); !got.Progress.Equal(decimal.NewFromInt(60)) {
		t.Errorf("progress = %s, want 60", got.Progress)
	}

	expectStatus(t, c.do("POST", "/api/savings/goals/"+goal.ID+"/deposit", map[string]any{"amount": "0"}), http.StatusBadRequest)

	rec = c.do("POST", "/api/savings/goals/"+goal.ID+"/deposit", map[string]any{"amount": "50"})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.SavingsGoalView](t, rec); !got.Completed {
		t.Error("goal should be completed")
	}
	expectStatus(t, c.do("POST", "/api/savings/goals/"+goal.ID+"/deposit", map[string]any{"amount": "1"}), http.StatusConflict)

	rec = c.do("GET", "/api/savings/progress", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.SavingsProgress](t, rec); got.CompletedGoals != 1 || got.TotalGoals != 1 {
		t.Errorf("progress = %+v", got)
	}

	rec = c.do("PUT", "/api/savings/goals/"+goal.ID, map[string]any{"name": "Road bike", "targetAmount": "200"})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.SavingsGoalView](t, rec); got.State != core.GoalCompleted {
		t.Errorf("raising the target reopened the goal: %s", got.State)
	}

	expectStatus(t, c.do("DELETE", "/api/savings/goals/"+goal.ID, nil), http.StatusNoContent)
	expectStatus(t, c.do("GET", "/api/savings/goals/"+goal.ID, nil), http.StatusNotFound)
}

func TestSplitBillEndpoints(t *testing.T) {
	s := newTestServer(t, Config{}, nil)
	c := signedIn(t, s)

	rec := c.do("POST", "/api/split-bills", map[string]any{
		"name": "Dinner", "totalAmount": "90", "date": "2025-03-10",
		"participants": []map[string]any{
			{"name": "Ada", "amountOwed": "45"},
			{"name": "Bob", "amountOwed": "45"},
		},
	})
	expectStatus(t, rec, http.StatusCreated)
	bill := decode[core.SplitBillView](t, rec)
	if len(bill.Participants) != 2 || bill.Participants[0].ID == "" {
		t.Fatalf("participants = %+v", bill.Participants)
	}

	path := "/api/split-bills/" + bill.ID
	expectStatus(t, c.do("PUT", path+"/participants/"+bill.Participants[0].ID+"/pay", nil), http.StatusOK)
	expectStatus(t, c.do("PUT", path+"/participants/nobody/pay", nil), http.StatusNotFound)
	expectStatus(t, c.do("POST", path+"/participants/"+bill.Participants[1].ID+"/pay", nil), http.StatusMethodNotAllowed)

	rec = c.do("PUT", path+"/participants/"+bill.Participants[1].ID+"/pay", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.SplitBillView](t, rec); !got.Settled || !got.RemainingAmount.IsZero() {
		t.Errorf("bill after all paid = settled %v, remaining %s", got.Settled, got.RemainingAmount)
	}

	rec = c.do("POST", path+"/participants", map[string]any{
		"participants": []map[string]any{{"name": "Cy", "amountOwed": "10"}},
	})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.SplitBillView](t, rec); len(got.Participants) != 3 || got.Participants[2].Paid {
		t.Errorf("added participant = %+v", got.Participants)
	}

	rec = c.do("GET", "/api/split-bills/summary", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.SplitBillSummary](t, rec); got.TotalBills != 1 || got.SettledBills != 1 || !got.TotalPending.IsZero() {
		t.Errorf("summary = %+v", got)
	}

	expectStatus(t, c.do("DELETE", path, nil), http.StatusNoContent)
	expectStatus(t, c.do("GET", path, nil), http.StatusNotFound)
}

func TestDashboardEndpoints(t *testing.T) {
	s := newTestServer(t, Config{}, nil)
	c := signedIn(t, s)

	today := core.DateOf(time.Now()).String()
	c.do("POST", "/api/expenses", map[string]any{"amount": "30", "category": "Travel", "date": today})
	c.do("POST", "/api/expenses", map[string]any{"amount": "10", "category": "Other", "date": today})

	rec := c.do("GET", "/api/dashboard/stats", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.DashboardStats](t, rec); !got.TotalExpenses.Equal(decimal.NewFromInt(40)) {
		t.Errorf("total expenses = %s, want 40", got.TotalExpenses)
	}

	rec = c.do("GET", "/api/dashboard/spending-breakdown", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]core.CategoryBreakdown](t, rec); len(got) != 2 || got[0].Category != "Travel" {
		t.Errorf("breakdown = %+v", got)
	}

	rec = c.do("GET", "/api/dashboard/spending-trends", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]core.MonthlyTrend](t, rec); len(got) != ledger.DefaultTrendMonths {
		t.Errorf("default trends returned %d months", len(got))
	}

	rec = c.do("GET", "/api/dashboard/spending-trends?months=2", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]core.MonthlyTrend](t, rec); len(got) != 2 {
		t.Errorf("trends returned %d months, want 2", len(got))
	}
	expectStatus(t, c.do("GET", "/api/dashboard/spending-trends?months=0", nil), http.StatusBadRequest)
	expectStatus(t, c.do("GET", "/api/dashboard/spending-trends?months=1099511627776", nil), http.StatusBadRequest)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	s := newTestServer(t, Config{RateLimitRPS: 0.001, RateLimitBurst: 1}, nil)
	c := &client{t: t, h: s.Handler}

	expectStatus(t, c.do("GET", "/healthz", nil), http.StatusOK)
	rec := c.do("GET", "/healthz", nil)
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestResponsesCarryRequestIDAndSecurityHeaders(t *testing.T) {
	s := newTestServer(t, Config{}, nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want the incoming id", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Config{}, nil)
	c := signedIn(t, s)
	c.do("GET", "/api/expenses", nil)

	rec := c.do("GET", "/metrics", nil)
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	for _, want := range []string{"finledger_http_requests_total", `route="GET /api/expenses"`} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.NotFoundError("expense", "x"), http.StatusNotFound},
		{core.ErrGoalCompleted, http.StatusConflict},
		{core.ErrInvalidAmount, http.StatusBadRequest},
		{storage.ErrAttachmentTooLarge, http.StatusRequestEntityTooLarge},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{auth.ErrMissingToken, http.StatusUnauthorized},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
