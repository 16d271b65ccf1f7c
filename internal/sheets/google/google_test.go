package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestYearPrefixedName(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"Expenses", "2025 Expenses"},
		{"2024 Expenses", "2024 Expenses"},
		{"  Ledger ", "2025 Ledger"},
		{"", ""},
		{"20245", "2025 20245"},
	}
	for _, tc := range cases {
		if got := yearPrefixedName(tc.base, 2025); got != tc.want {
			t.Errorf("yearPrefixedName(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
	_, err = New(context.Background(), Config{SpreadsheetID: "sid", ServiceAccountFile: "/non/existent.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestExportAppendsRow(t *testing.T) {
	var got gsheet.ValueRange
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":append") {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"updates":{"updatedRange":"'2025 Expenses'!A7:F7"}}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), Config{SpreadsheetID: "sid", SheetName: "Expenses"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	e := core.Expense{
		ID:          "e1",
		OwnerID:     "u1",
		Amount:      decimal.RequireFromString("12.5"),
		Category:    "Travel",
		Date:        core.NewDate(2025, 3, 9),
		Description: "Train",
	}
	ref, err := c.Export(context.Background(), e)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if ref != "'2025 Expenses'!A7:F7" {
		t.Fatalf("unexpected ref %q", ref)
	}
	if !strings.Contains(path, "/v4/spreadsheets/sid/values/") {
		t.Fatalf("unexpected path %q", path)
	}
	if len(got.Values) != 1 || len(got.Values[0]) != 6 {
		t.Fatalf("unexpected values %v", got.Values)
	}
	row := got.Values[0]
	if row[0] != "2025-03-09" || row[1] != "Travel" || row[3] != "12.50" || row[5] != "e1" {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestExportValidates(t *testing.T) {
	c := &Client{spreadsheetID: "sid", sheetBase: "Expenses"}
	_, err := c.Export(context.Background(), core.Expense{OwnerID: "u1", Category: "Travel"})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
