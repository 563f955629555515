// Package tokenv1 is the namqr.token.v1 TokenService: issue, validate, redeem and look up payment tokens.
package tokenv1

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/thependalorian/ketchup-smartpay-sub006/api/rpc"
)

const ServiceName = "namqr.token.v1.TokenService"

const (
	TokenService_IssueToken_FullMethodName    = "/" + ServiceName + "/IssueToken"
	TokenService_ValidateToken_FullMethodName = "/" + ServiceName + "/ValidateToken"
	TokenService_RedeemToken_FullMethodName   = "/" + ServiceName + "/RedeemToken"
	TokenService_GetToken_FullMethodName      = "/" + ServiceName + "/GetToken"
	TokenService_ListTokens_FullMethodName    = "/" + ServiceName + "/ListTokens"
)

// Token is the merchant view of a stored token. Amounts are decimal strings; an empty
// amount means the payer enters it at redemption.
type Token struct {
	TokenID             string     `json:"token_id"`
	PayeeID             string     `json:"payee_id"`
	Amount              string     `json:"amount,omitempty"`
	Currency            string     `json:"currency"`
	Reference           string     `json:"reference,omitempty"`
	IssuedAt            time.Time  `json:"issued_at"`
	ExpiresAt           time.Time  `json:"expires_at"`
	OfflineCapable      bool       `json:"offline_capable,omitempty"`
	State               string     `json:"state"`
	RedeemedAt          *time.Time `json:"redeemed_at,omitempty"`
	RedeemedBy          string     `json:"redeemed_by,omitempty"`
	SettlementReference string     `json:"settlement_reference,omitempty"`
	Channel             string     `json:"channel,omitempty"`
	DeviceID            string     `json:"device_id,omitempty"`
	RedeemedAmount      string     `json:"redeemed_amount,omitempty"`
}

type IssueTokenRequest struct {
	PayeeID        string `json:"payee_id"`
	Amount         string `json:"amount,omitempty"`
	Currency       string `json:"currency"`
	Reference      string `json:"reference,omitempty"`
	TTLSeconds     int64  `json:"ttl_seconds,omitempty"`
	OfflineCapable bool   `json:"offline_capable,omitempty"`
}

type IssueTokenResponse struct {
	Payload string `json:"payload"`
	Token   *Token `json:"token"`
}

type ValidateTokenRequest struct {
	Payload string `json:"payload"`
}

type ValidateTokenResponse struct {
	Valid          bool       `json:"valid"`
	Reason         string     `json:"reason,omitempty"`
	TokenID        string     `json:"token_id,omitempty"`
	PayeeID        string     `json:"payee_id,omitempty"`
	Amount         string     `json:"amount,omitempty"`
	Currency       string     `json:"currency,omitempty"`
	Reference      string     `json:"reference,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	OfflineCapable bool       `json:"offline_capable,omitempty"`
	Offline        bool       `json:"offline,omitempty"`
}

// RedeemTokenRequest identifies the token by payload or, for reconciliation flows, by token id.
type RedeemTokenRequest struct {
	Payload         string `json:"payload,omitempty"`
	TokenID         string `json:"token_id,omitempty"`
	PayerAccountRef string `json:"payer_account_ref"`
	DeviceID        string `json:"device_id,omitempty"`
	Channel         string `json:"channel"`
	Amount          string `json:"amount,omitempty"`
}

type RedeemTokenResponse struct {
	Success             bool   `json:"success"`
	Reason              string `json:"reason,omitempty"`
	Stage               string `json:"stage"`
	TokenID             string `json:"token_id,omitempty"`
	SettlementReference string `json:"settlement_reference,omitempty"`
}

type GetTokenRequest struct {
	TokenID string `json:"token_id"`
}

type GetTokenResponse struct {
	Token *Token `json:"token"`
}

type ListTokensRequest struct {
	PayeeID  string `json:"payee_id"`
	PageSize int32  `json:"page_size,omitempty"`
	Offset   int32  `json:"offset,omitempty"`
}

type ListTokensResponse struct {
	Tokens []*Token `json:"tokens"`
}

// TokenServiceServer is the server API for TokenService.
type TokenServiceServer interface {
	IssueToken(context.Context, *IssueTokenRequest) (*IssueTokenResponse, error)
	ValidateToken(context.Context, *ValidateTokenRequest) (*ValidateTokenResponse, error)
	RedeemToken(context.Context, *RedeemTokenRequest) (*RedeemTokenResponse, error)
	GetToken(context.Context, *GetTokenRequest) (*GetTokenResponse, error)
	ListTokens(context.Context, *ListTokensRequest) (*ListTokensResponse, error)
}

var TokenService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "IssueToken", TokenServiceServer.IssueToken),
		rpc.Unary(ServiceName, "ValidateToken", TokenServiceServer.ValidateToken),
		rpc.Unary(ServiceName, "RedeemToken", TokenServiceServer.RedeemToken),
		rpc.Unary(ServiceName, "GetToken", TokenServiceServer.GetToken),
		rpc.Unary(ServiceName, "ListTokens", TokenServiceServer.ListTokens),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "namqr/token/v1",
}

func RegisterTokenServiceServer(s grpc.ServiceRegistrar, srv TokenServiceServer) {
	s.RegisterService(&TokenService_ServiceDesc, srv)
}

// TokenServiceClient is the client API for TokenService.
type TokenServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTokenServiceClient(cc grpc.ClientConnInterface) *TokenServiceClient {
	return &TokenServiceClient{cc: cc}
}

func (c *TokenServiceClient) IssueToken(ctx context.Context, in *IssueTokenRequest, opts ...grpc.CallOption) (*IssueTokenResponse, error) {
	return rpc.Invoke[IssueTokenRequest, IssueTokenResponse](ctx, c.cc, TokenService_IssueToken_FullMethodName, in, opts...)
}

func (c *TokenServiceClient) ValidateToken(ctx context.Context, in *ValidateTokenRequest, opts ...grpc.CallOption) (*ValidateTokenResponse, error) {
	return rpc.Invoke[ValidateTokenRequest, ValidateTokenResponse](ctx, c.cc, TokenService_ValidateToken_FullMethodName, in, opts...)
}

func (c *TokenServiceClient) RedeemToken(ctx context.Context, in *RedeemTokenRequest, opts ...grpc.CallOption) (*RedeemTokenResponse, error) {
	return rpc.Invoke[RedeemTokenRequest, RedeemTokenResponse](ctx, c.cc, TokenService_RedeemToken_FullMethodName, in, opts...)
}

func (c *TokenServiceClient) GetToken(ctx context.Context, in *GetTokenRequest, opts ...grpc.CallOption) (*GetTokenResponse, error) {
	return rpc.Invoke[GetTokenRequest, GetTokenResponse](ctx, c.cc, TokenService_GetToken_FullMethodName, in, opts...)
}

func (c *TokenServiceClient) ListTokens(ctx context.Context, in *ListTokensRequest, opts ...grpc.CallOption) (*ListTokensResponse, error) {
	return rpc.Invoke[ListTokensRequest, ListTokensResponse](ctx, c.cc, TokenService_ListTokens_FullMethodName, in, opts...)
}
