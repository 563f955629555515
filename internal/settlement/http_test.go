package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testInstruction() Instruction {
	return Instruction{
		PayerAccountRef: "P1",
		PayeeID:         "M1",
		Amount:          decimal.RequireFromString("100.00"),
		Currency:        "NAD",
		TokenID:         "tok-1",
	}
}

func TestHTTPSettler_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/settlements" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "tok-1" {
			t.Errorf("Idempotency-Key = %q, want tok-1", got)
		}
		var in Instruction
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if !in.Amount.Equal(decimal.RequireFromString("100")) || in.PayeeID != "M1" {
			t.Errorf("instruction = %+v", in)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"reference": "SET-1"})
	}))
	defer srv.Close()

	ref, err := NewHTTPSettler(srv.URL+"/", time.Second, srv.Client()).Settle(context.Background(), testInstruction())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if ref != "SET-1" {
		t.Errorf("reference = %q, want SET-1", ref)
	}
}

func TestHTTPSettler_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"reference": "SET-2"})
	}))
	defer srv.Close()

	ref, err := NewHTTPSettler(srv.URL, 5*time.Second, srv.Client()).Settle(context.Background(), testInstruction())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if ref != "SET-2" || atomic.LoadInt32(&calls) != 3 {
		t.Errorf("reference = %q after %d calls", ref, calls)
	}
}

func TestHTTPSettler_RejectionNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "insufficient funds", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewHTTPSettler(srv.URL, time.Second, srv.Client()).Settle(context.Background(), testInstruction())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Settle err = %v, want ErrRejected", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestHTTPSettler_MissingReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := NewHTTPSettler(srv.URL, time.Second, srv.Client()).Settle(context.Background(), testInstruction()); err == nil {
		t.Fatal("Settle should fail without a reference")
	}
}

func TestHTTPSettler_EmptyBaseURL(t *testing.T) {
	if _, err := NewHTTPSettler("", time.Second, nil).Settle(context.Background(), testInstruction()); err == nil {
		t.Fatal("Settle should fail with empty base URL")
	}
}

func TestFunc(t *testing.T) {
	f := Func(func(_ context.Context, in Instruction) (string, error) { return "ref-" + in.TokenID, nil })
	ref, err := f.Settle(context.Background(), testInstruction())
	if err != nil || ref != "ref-tok-1" {
		t.Fatalf("Func.Settle = %q, %v", ref, err)
	}
}
