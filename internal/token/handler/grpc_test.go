package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	tokenv1 "github.com/thependalorian/ketchup-smartpay-sub006/api/token/v1"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/redemption"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/security"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/server/interceptors"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/settlement"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/codec"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/domain"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/repository"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	keys, err := codec.NewKeyring("k1", "0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	settler := settlement.Func(func(context.Context, settlement.Instruction) (string, error) {
		return "LEDGER-1", nil
	})
	co := redemption.New(codec.New(keys), repository.NewMemoryRepository(), nil, settler,
		redemption.Config{DefaultTTL: 15 * time.Minute, MaxTTL: time.Hour})
	return NewServer(co)
}

func as(role security.Role, merchantID string) context.Context {
	return interceptors.WithCaller(context.Background(), security.Caller{Subject: "test-" + string(role), MerchantID: merchantID, Role: role})
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("error is not a gRPC status: %v", err)
	}
	if st.Code() != code {
		t.Errorf("status code = %v, want %v (%s)", st.Code(), code, st.Message())
	}
}

func TestServer_IssueValidateRedeem(t *testing.T) {
	srv := newTestServer(t)
	merchant := as(security.RoleMerchant, "M1")
	acquirer := as(security.RoleAcquirer, "")

	issued, err := srv.IssueToken(merchant, &tokenv1.IssueTokenRequest{PayeeID: "M1", Amount: "100.00", Currency: "NAD", TTLSeconds: 900})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if issued.Payload == "" || issued.Token == nil {
		t.Fatal("IssueToken returned empty payload or token")
	}
	if issued.Token.State != "ISSUED" || issued.Token.Amount != "100" {
		t.Errorf("token = %+v", issued.Token)
	}

	v, err := srv.ValidateToken(acquirer, &tokenv1.ValidateTokenRequest{Payload: issued.Payload})
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if !v.Valid || v.PayeeID != "M1" || v.ExpiresAt == nil {
		t.Errorf("validate = %+v", v)
	}

	r, err := srv.RedeemToken(acquirer, &tokenv1.RedeemTokenRequest{Payload: issued.Payload, PayerAccountRef: "ACC-0001234", Channel: "POS"})
	if err != nil {
		t.Fatalf("RedeemToken: %v", err)
	}
	if !r.Success || r.SettlementReference != "LEDGER-1" || r.Stage != "HANDED_OFF" {
		t.Errorf("redeem = %+v", r)
	}

	replay, err := srv.RedeemToken(acquirer, &tokenv1.RedeemTokenRequest{Payload: issued.Payload, PayerAccountRef: "ACC-999", Channel: "ATM"})
	if err != nil {
		t.Fatalf("RedeemToken replay: %v", err)
	}
	if replay.Success || replay.Reason != "AlreadyRedeemed" {
		t.Errorf("replay = %+v, want AlreadyRedeemed", replay)
	}

	got, err := srv.GetToken(merchant, &tokenv1.GetTokenRequest{TokenID: issued.Token.TokenID})
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got.Token.State != "REDEEMED" || got.Token.RedeemedBy != "*******1234" || got.Token.Channel != "POS" {
		t.Errorf("token = %+v", got.Token)
	}

	list, err := srv.ListTokens(merchant, &tokenv1.ListTokensRequest{PayeeID: "M1", PageSize: 1000})
	if err != nil {
		t.Fatalf("ListTokens: %v", err)
	}
	if len(list.Tokens) != 1 {
		t.Errorf("ListTokens len = %d, want 1", len(list.Tokens))
	}
}

func TestServer_Authorization(t *testing.T) {
	srv := newTestServer(t)
	issued, err := srv.IssueToken(as(security.RoleOperator, ""), &tokenv1.IssueTokenRequest{PayeeID: "M1", Currency: "NAD"})
	if err != nil {
		t.Fatalf("IssueToken as operator: %v", err)
	}

	_, err = srv.IssueToken(as(security.RoleMerchant, "M2"), &tokenv1.IssueTokenRequest{PayeeID: "M1", Currency: "NAD"})
	wantCode(t, err, codes.PermissionDenied)

	_, err = srv.RedeemToken(as(security.RoleMerchant, "M1"), &tokenv1.RedeemTokenRequest{Payload: issued.Payload, PayerAccountRef: "P1", Channel: "POS"})
	wantCode(t, err, codes.PermissionDenied)

	_, err = srv.ValidateToken(context.Background(), &tokenv1.ValidateTokenRequest{Payload: issued.Payload})
	wantCode(t, err, codes.Unauthenticated)

	_, err = srv.GetToken(as(security.RoleMerchant, "M2"), &tokenv1.GetTokenRequest{TokenID: issued.Token.TokenID})
	wantCode(t, err, codes.NotFound)

	_, err = srv.ListTokens(as(security.RoleAcquirer, ""), &tokenv1.ListTokensRequest{PayeeID: "M1"})
	wantCode(t, err, codes.PermissionDenied)
}

func TestServer_InvalidArguments(t *testing.T) {
	srv := newTestServer(t)
	op := as(security.RoleOperator, "")
	testCases := []struct {
		name string
		call func() error
	}{
		{"bad amount", func() error {
			_, err := srv.IssueToken(op, &tokenv1.IssueTokenRequest{PayeeID: "M1", Currency: "NAD", Amount: "ten"})
			return err
		}},
		{"negative ttl", func() error {
			_, err := srv.IssueToken(op, &tokenv1.IssueTokenRequest{PayeeID: "M1", Currency: "NAD", TTLSeconds: -1})
			return err
		}},
		{"ttl above max", func() error {
			_, err := srv.IssueToken(op, &tokenv1.IssueTokenRequest{PayeeID: "M1", Currency: "NAD", TTLSeconds: 7200})
			return err
		}},
		{"unknown currency", func() error {
			_, err := srv.IssueToken(op, &tokenv1.IssueTokenRequest{PayeeID: "M1", Currency: "NOPE"})
			return err
		}},
		{"missing payer", func() error {
			_, err := srv.RedeemToken(op, &tokenv1.RedeemTokenRequest{Payload: "namqr://x.y", Channel: "POS"})
			return err
		}},
		{"missing token id", func() error {
			_, err := srv.GetToken(op, &tokenv1.GetTokenRequest{})
			return err
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wantCode(t, tc.call(), codes.InvalidArgument)
		})
	}
}

func TestServer_RejectionsInBody(t *testing.T) {
	srv := newTestServer(t)
	acquirer := as(security.RoleAcquirer, "")

	v, err := srv.ValidateToken(acquirer, &tokenv1.ValidateTokenRequest{Payload: "garbage"})
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if v.Valid || v.Reason != "InvalidPrefix" {
		t.Errorf("validate = %+v, want InvalidPrefix", v)
	}

	r, err := srv.RedeemToken(acquirer, &tokenv1.RedeemTokenRequest{TokenID: "unknown", PayerAccountRef: "P1", Channel: "USSD"})
	if err != nil {
		t.Fatalf("RedeemToken: %v", err)
	}
	if r.Success || r.Reason != "NotFound" || r.Stage != "RECEIVED" {
		t.Errorf("redeem = %+v", r)
	}

	_, err = srv.GetToken(as(security.RoleOperator, ""), &tokenv1.GetTokenRequest{TokenID: "unknown"})
	wantCode(t, err, codes.NotFound)
}

// failingService returns err from every call.
type failingService struct{ err error }

func (f failingService) Issue(context.Context, redemption.IssueRequest) (*redemption.IssueResult, error) {
	return nil, f.err
}
func (f failingService) Validate(context.Context, string) (*redemption.ValidateResult, error) {
	return nil, f.err
}
func (f failingService) Redeem(context.Context, redemption.RedeemRequest) (*redemption.RedeemResult, error) {
	return nil, f.err
}
func (f failingService) Token(context.Context, string) (*domain.Record, error) { return nil, f.err }
func (f failingService) PayeeTokens(context.Context, string, int, int) ([]*domain.Record, error) {
	return nil, f.err
}

func TestServer_OperationalErrors(t *testing.T) {
	op := as(security.RoleOperator, "")
	testCases := []struct {
		err  error
		code codes.Code
	}{
		{errors.New("connection refused"), codes.Unavailable},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
	}
	for _, tc := range testCases {
		t.Run(tc.code.String(), func(t *testing.T) {
			srv := NewServer(failingService{err: tc.err})
			_, err := srv.RedeemToken(op, &tokenv1.RedeemTokenRequest{Payload: "namqr://a.b", PayerAccountRef: "P1", Channel: "POS"})
			wantCode(t, err, tc.code)
			_, err = srv.ValidateToken(op, &tokenv1.ValidateTokenRequest{Payload: "namqr://a.b"})
			wantCode(t, err, tc.code)
		})
	}
}

func TestServer_NilServiceUnimplemented(t *testing.T) {
	srv := NewServer(nil)
	op := as(security.RoleOperator, "")
	_, err := srv.IssueToken(op, &tokenv1.IssueTokenRequest{})
	wantCode(t, err, codes.Unimplemented)
	_, err = srv.ValidateToken(op, &tokenv1.ValidateTokenRequest{})
	wantCode(t, err, codes.Unimplemented)
	_, err = srv.RedeemToken(op, &tokenv1.RedeemTokenRequest{})
	wantCode(t, err, codes.Unimplemented)
	_, err = srv.GetToken(op, &tokenv1.GetTokenRequest{})
	wantCode(t, err, codes.Unimplemented)
	_, err = srv.ListTokens(op, &tokenv1.ListTokensRequest{})
	wantCode(t, err, codes.Unimplemented)
}
