package interceptors

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/security"
)

func okHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "success", nil
}

func withBearer(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"authorization": "Bearer " + token,
	}))
}

func TestAuthUnary_PublicMethod(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	interceptor := AuthUnary(tokens, map[string]bool{"/test.Service/PublicMethod": true})

	for name, ctx := range map[string]context.Context{
		"no token":      context.Background(),
		"invalid token": withBearer("invalid-token"),
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/test.Service/PublicMethod"}, okHandler)
			if err != nil {
				t.Fatalf("interceptor: %v", err)
			}
			if resp != "success" {
				t.Errorf("response = %v, want %q", resp, "success")
			}
		})
	}
}

func TestAuthUnary_ProtectedMethod_Rejected(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	interceptor := AuthUnary(tokens, map[string]bool{})

	for name, ctx := range map[string]context.Context{
		"no token":      context.Background(),
		"invalid token": withBearer("invalid-token"),
		"wrong scheme": metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
			"authorization": "Basic dXNlcjpwYXNz",
		})),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: "/test.Service/ProtectedMethod"}, okHandler)
			if err == nil {
				t.Fatal("expected error")
			}
			if st, _ := status.FromError(err); st.Code() != codes.Unauthenticated {
				t.Errorf("status code = %v, want %v", st.Code(), codes.Unauthenticated)
			}
		})
	}
}

func TestAuthUnary_ProtectedMethod_ValidToken(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	want := security.Caller{Subject: "merchant-user-1", MerchantID: "M1", Role: security.RoleMerchant}
	token, _, err := tokens.Issue(want, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	interceptor := AuthUnary(tokens, map[string]bool{})

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		got, ok := CallerFrom(ctx)
		if !ok || got != want {
			t.Errorf("caller = %+v, ok = %v, want %+v", got, ok, want)
		}
		return "success", nil
	}
	resp, err := interceptor(withBearer(token), "request", &grpc.UnaryServerInfo{FullMethod: "/test.Service/ProtectedMethod"}, handler)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if resp != "success" {
		t.Errorf("response = %v, want %q", resp, "success")
	}
}

func TestAnonymousUnary(t *testing.T) {
	dev := security.Caller{Subject: "dev", Role: security.RoleOperator}
	interceptor := AnonymousUnary(dev)
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"}, func(ctx context.Context, req interface{}) (interface{}, error) {
		if c, ok := CallerFrom(ctx); !ok || c != dev {
			t.Errorf("caller = %+v, ok = %v", c, ok)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
}

func TestExtractBearer(t *testing.T) {
	testCases := []struct {
		name   string
		header string
		want   string
	}{
		{"valid", "Bearer abc", "abc"},
		{"case insensitive", "bEaReR abc", "abc"},
		{"surrounding whitespace", "  Bearer   abc  ", "abc"},
		{"wrong prefix", "Token abc", ""},
		{"too short", "Bear", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{"authorization": tc.header}))
			if got := extractBearer(ctx); got != tc.want {
				t.Errorf("extractBearer = %q, want %q", got, tc.want)
			}
		})
	}
	if got := extractBearer(context.Background()); got != "" {
		t.Errorf("extractBearer without metadata = %q, want empty", got)
	}
}
