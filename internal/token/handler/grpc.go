package handler

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	tokenv1 "github.com/thependalorian/ketchup-smartpay-sub006/api/token/v1"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/logging"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/platform/rbac"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/redemption"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/security"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/domain"
)

const maxPageSize = 200

// Service is the redemption coordinator as seen by the API.
type Service interface {
	Issue(ctx context.Context, req redemption.IssueRequest) (*redemption.IssueResult, error)
	Validate(ctx context.Context, payload string) (*redemption.ValidateResult, error)
	Redeem(ctx context.Context, req redemption.RedeemRequest) (*redemption.RedeemResult, error)
	Token(ctx context.Context, tokenID string) (*domain.Record, error)
	PayeeTokens(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Record, error)
}

var _ Service = (*redemption.Coordinator)(nil)

// Server implements TokenService. Business rejections travel in the response body;
// only infrastructure failures and bad input become gRPC errors.
type Server struct {
	svc Service
}

// NewServer returns a new Token gRPC server. Pass nil svc for stub (Unimplemented).
func NewServer(svc Service) *Server {
	return &Server{svc: svc}
}

// IssueToken mints a token for the payee. Merchants may only issue for themselves.
func (s *Server) IssueToken(ctx context.Context, req *tokenv1.IssueTokenRequest) (*tokenv1.IssueTokenResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method IssueToken not implemented")
	}
	if _, err := rbac.RequireMerchant(ctx, req.PayeeID); err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if req.TTLSeconds < 0 {
		return nil, status.Error(codes.InvalidArgument, "ttl_seconds must not be negative")
	}
	res, err := s.svc.Issue(ctx, redemption.IssueRequest{
		PayeeID:        req.PayeeID,
		Amount:         amount,
		Currency:       req.Currency,
		Reference:      req.Reference,
		TTL:            time.Duration(req.TTLSeconds) * time.Second,
		OfflineCapable: req.OfflineCapable,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &tokenv1.IssueTokenResponse{Payload: res.Payload, Token: recordToProto(res.Record)}, nil
}

// ValidateToken previews a payload without changing state.
func (s *Server) ValidateToken(ctx context.Context, req *tokenv1.ValidateTokenRequest) (*tokenv1.ValidateTokenResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method ValidateToken not implemented")
	}
	if _, err := rbac.RequireRole(ctx, security.RoleAcquirer, security.RoleMerchant); err != nil {
		return nil, err
	}
	res, err := s.svc.Validate(ctx, req.Payload)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &tokenv1.ValidateTokenResponse{
		Valid:          res.Valid,
		Reason:         string(res.Reason),
		TokenID:        res.TokenID,
		PayeeID:        res.PayeeID,
		Amount:         amountString(res.Amount),
		Currency:       res.Currency,
		Reference:      res.Reference,
		OfflineCapable: res.OfflineCapable,
		Offline:        res.Offline,
	}
	if !res.ExpiresAt.IsZero() {
		exp := res.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out, nil
}

// RedeemToken performs one redemption attempt for an acquiring channel.
func (s *Server) RedeemToken(ctx context.Context, req *tokenv1.RedeemTokenRequest) (*tokenv1.RedeemTokenResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method RedeemToken not implemented")
	}
	if _, err := rbac.RequireRole(ctx, security.RoleAcquirer); err != nil {
		return nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	res, err := s.svc.Redeem(ctx, redemption.RedeemRequest{
		Payload:         req.Payload,
		TokenID:         req.TokenID,
		PayerAccountRef: req.PayerAccountRef,
		DeviceID:        req.DeviceID,
		Channel:         req.Channel,
		Amount:          amount,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &tokenv1.RedeemTokenResponse{
		Success:             res.Success,
		Reason:              string(res.Reason),
		Stage:               string(res.Stage),
		TokenID:             res.TokenID,
		SettlementReference: res.SettlementReference,
	}, nil
}

// GetToken returns a stored token to its payee or an operator.
func (s *Server) GetToken(ctx context.Context, req *tokenv1.GetTokenRequest) (*tokenv1.GetTokenResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method GetToken not implemented")
	}
	if _, err := rbac.RequireRole(ctx, security.RoleMerchant); err != nil {
		return nil, err
	}
	if req.TokenID == "" {
		return nil, status.Error(codes.InvalidArgument, "token_id is required")
	}
	rec, err := s.svc.Token(ctx, req.TokenID)
	if err != nil {
		return nil, toStatus(err)
	}
	if rec == nil {
		return nil, status.Error(codes.NotFound, "token not found")
	}
	// A merchant asking for another payee's token learns nothing about it.
	if _, err := rbac.RequireMerchant(ctx, rec.PayeeID); err != nil {
		return nil, status.Error(codes.NotFound, "token not found")
	}
	return &tokenv1.GetTokenResponse{Token: recordToProto(rec)}, nil
}

// ListTokens returns a payee's tokens newest first.
func (s *Server) ListTokens(ctx context.Context, req *tokenv1.ListTokensRequest) (*tokenv1.ListTokensResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method ListTokens not implemented")
	}
	if _, err := rbac.RequireMerchant(ctx, req.PayeeID); err != nil {
		return nil, err
	}
	limit := int(req.PageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	list, err := s.svc.PayeeTokens(ctx, req.PayeeID, limit, int(req.Offset))
	if err != nil {
		return nil, toStatus(err)
	}
	tokens := make([]*tokenv1.Token, 0, len(list))
	for _, rec := range list {
		tokens = append(tokens, recordToProto(rec))
	}
	return &tokenv1.ListTokensResponse{Tokens: tokens}, nil
}

// toStatus maps coordinator errors to gRPC status. Anything unrecognized is an infrastructure failure.
func toStatus(err error) error {
	switch {
	case errors.Is(err, redemption.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request deadline exceeded")
	}
	return status.Error(codes.Unavailable, "token service temporarily unavailable")
}

func parseAmount(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, status.Error(codes.InvalidArgument, "amount must be a decimal number")
	}
	return decimal.NewNullDecimal(d), nil
}

func amountString(a decimal.NullDecimal) string {
	if !a.Valid {
		return ""
	}
	return a.Decimal.String()
}

func recordToProto(r *domain.Record) *tokenv1.Token {
	if r == nil {
		return nil
	}
	out := &tokenv1.Token{
		TokenID:             r.ID,
		PayeeID:             r.PayeeID,
		Amount:              amountString(r.Amount),
		Currency:            r.Currency,
		Reference:           r.Reference,
		IssuedAt:            r.IssuedAt,
		ExpiresAt:           r.ExpiresAt,
		OfflineCapable:      r.OfflineCapable,
		State:               string(r.State),
		RedeemedAt:          r.RedeemedAt,
		SettlementReference: r.SettlementReference,
		Channel:             string(r.RedemptionChannel),
		DeviceID:            r.RedemptionDeviceID,
		RedeemedAmount:      amountString(r.RedeemedAmount),
	}
	if r.RedeemedBy != "" {
		out.RedeemedBy = logging.MaskAccount(r.RedeemedBy)
	}
	return out
}
