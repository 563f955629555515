// Package redemption orchestrates issuing, validating and redeeming NAMQR payment tokens.
//
// Redeem runs decode, device check, atomic claim and settlement handoff in that order.
// The store claim is the commitment point: once it succeeds the attempt is finished on a
// context detached from the caller, and a settlement failure never returns the token to ISSUED.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/trust"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/logging"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/metrics"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/settlement"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/telemetry"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/codec"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/domain"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/repository"
)

// ErrInvalidRequest is returned for malformed API input that is not a token problem.
var ErrInvalidRequest = errors.New("invalid request")

const eventSource = "namqr-redemption"

// Config holds token lifetime settings.
type Config struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEmitter sets the analytics event emitter. Emission is asynchronous and best-effort.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(c *Coordinator) { c.emitter = e }
}

// WithClock sets the time source for issuance, validation and claims.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator implements the token lifecycle on top of the codec, store, device gate and settler.
type Coordinator struct {
	codec    *codec.Codec
	store    repository.Repository
	gate     trust.Gate
	settler  settlement.Settler
	emitter  telemetry.EventEmitter
	logger   *zap.Logger
	validate *validator.Validate
	cfg      Config
	now      func() time.Time
}

// New returns a Coordinator. A nil gate allows every device.
func New(c *codec.Codec, store repository.Repository, gate trust.Gate, settler settlement.Settler, cfg Config, opts ...Option) *Coordinator {
	if gate == nil {
		gate = trust.AllowAll{}
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 15 * time.Minute
	}
	if cfg.MaxTTL < cfg.DefaultTTL {
		cfg.MaxTTL = cfg.DefaultTTL
	}
	co := &Coordinator{
		store:    store,
		gate:     gate,
		settler:  settler,
		logger:   zap.NewNop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(co)
	}
	co.codec = c.WithClock(co.now)
	return co
}

// Issue mints a token, stores it as ISSUED and returns its QR payload.
func (c *Coordinator) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	req.PayeeID = strings.TrimSpace(req.PayeeID)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Amount.Valid && !amountInRange(req.Amount.Decimal) {
		return nil, fmt.Errorf("%w: amount %s must be positive, below %s with at most %d decimal places",
			ErrInvalidRequest, req.Amount.Decimal, maxAmount, amountScale)
	}
	ttl := c.cfg.DefaultTTL
	if req.TTL > 0 {
		ttl = req.TTL
	}
	if ttl > c.cfg.MaxTTL {
		return nil, fmt.Errorf("%w: ttl %s exceeds maximum %s", ErrInvalidRequest, ttl, c.cfg.MaxTTL)
	}

	// The payload carries whole seconds; the record must agree with it.
	// Expiry rounds up so the token lives at least ttl.
	now := c.now().UTC()
	issuedAt := now.Truncate(time.Second)
	expiresAt := now.Add(ttl)
	if t := expiresAt.Truncate(time.Second); !t.Equal(expiresAt) {
		expiresAt = t.Add(time.Second)
	}
	rec := &domain.Record{
		Token: domain.Token{
			ID:             uuid.NewString(),
			PayeeID:        req.PayeeID,
			Amount:         req.Amount,
			Currency:       req.Currency,
			Reference:      req.Reference,
			IssuedAt:       issuedAt,
			ExpiresAt:      expiresAt,
			OfflineCapable: req.OfflineCapable,
		},
		State:     domain.StateIssued,
		CreatedAt: issuedAt,
	}
	payload, err := c.codec.Encode(&rec.Token)
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	if err := c.store.Issue(ctx, rec); err != nil {
		metrics.OperationalErrorsTotal.WithLabelValues("issue").Inc()
		return nil, fmt.Errorf("store token: %w", err)
	}

	metrics.TokensIssuedTotal.WithLabelValues(rec.Currency, strconv.FormatBool(rec.OfflineCapable)).Inc()
	c.logger.Info("token issued",
		zap.String("token_id", rec.ID),
		zap.String("payee_id", rec.PayeeID),
		zap.Time("expires_at", rec.ExpiresAt),
		zap.Bool("offline_capable", rec.OfflineCapable))
	c.emit(ctx, &telemetry.RedemptionEvent{
		EventType: telemetry.EventTokenIssued,
		TokenID:   rec.ID,
		PayeeID:   rec.PayeeID,
		Amount:    amountString(rec.Amount),
		Currency:  rec.Currency,
	})
	return &IssueResult{Payload: payload, Record: rec}, nil
}

// Validate reports whether payload is currently redeemable without changing any state.
// The returned error is non-nil only when the store is unreachable for a token that is not offline capable.
func (c *Coordinator) Validate(ctx context.Context, payload string) (*ValidateResult, error) {
	res, err := c.validatePayload(ctx, payload)
	if err != nil {
		metrics.OperationalErrorsTotal.WithLabelValues("validate").Inc()
		return nil, err
	}
	outcome := metrics.OutcomeSuccess
	if !res.Valid {
		outcome = string(res.Reason)
	}
	metrics.ValidationsTotal.WithLabelValues(outcome).Inc()
	c.emit(ctx, &telemetry.RedemptionEvent{
		EventType: telemetry.EventTokenValidated,
		TokenID:   res.TokenID,
		PayeeID:   res.PayeeID,
		Reason:    string(res.Reason),
		Amount:    amountString(res.Amount),
		Currency:  res.Currency,
		Offline:   res.Offline,
	})
	return res, nil
}

func (c *Coordinator) validatePayload(ctx context.Context, payload string) (*ValidateResult, error) {
	tok, err := c.codec.Decode(payload)
	if tok == nil {
		return &ValidateResult{Reason: decodeReason(err)}, nil
	}
	res := validateResultFor(tok)
	if err != nil {
		res.Reason = decodeReason(err)
		return res, nil
	}

	rec, err := c.store.Lookup(ctx, tok.ID)
	if err != nil {
		if !tok.OfflineCapable {
			return nil, fmt.Errorf("lookup token: %w", err)
		}
		c.logger.Warn("token store unavailable, answering offline-capable token from signature",
			zap.String("token_id", tok.ID), zap.Error(err))
		res.Valid = true
		res.Offline = true
		return res, nil
	}
	switch {
	case rec == nil:
		res.Reason = ReasonNotFound
	case rec.State == domain.StateRedeemed:
		res.Reason = ReasonAlreadyRedeemed
	case rec.ExpiredAt(c.now()):
		res.Reason = ReasonExpired
	default:
		res = validateResultFor(&rec.Token)
		res.Valid = true
	}
	return res, nil
}

func validateResultFor(t *domain.Token) *ValidateResult {
	return &ValidateResult{
		TokenID:        t.ID,
		PayeeID:        t.PayeeID,
		Amount:         t.Amount,
		Currency:       t.Currency,
		Reference:      t.Reference,
		ExpiresAt:      t.ExpiresAt,
		OfflineCapable: t.OfflineCapable,
	}
}

// Redeem performs one redemption attempt. Business rejections are returned as a result with a Reason;
// the error is reserved for infrastructure failures (store or device gate unreachable)
// and for requests without a payer account reference.
func (c *Coordinator) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	start := time.Now()
	a := &attempt{req: req}
	res, err := c.redeem(ctx, a)
	c.observeRedeem(ctx, a, res, err, time.Since(start))
	return res, err
}

// attempt carries what an in-flight redemption has learned so far, for logs and analytics.
type attempt struct {
	req     RedeemRequest
	channel domain.Channel
	token   *domain.Token
}

func (c *Coordinator) redeem(ctx context.Context, a *attempt) (*RedeemResult, error) {
	req := a.req
	if strings.TrimSpace(req.PayerAccountRef) == "" {
		return nil, fmt.Errorf("%w: payer account reference is required", ErrInvalidRequest)
	}

	// RECEIVED
	channel, ok := domain.ParseChannel(req.Channel)
	if !ok {
		return rejected(StageReceived, ReasonInvalidFormat, req.TokenID), nil
	}
	a.channel = channel

	tok, reason, err := c.resolveToken(ctx, req)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return rejected(StageReceived, reason, req.TokenID), nil
	}
	a.token = tok

	// DECODED
	amount, reason := settleAmount(tok, req.Amount)
	if reason != "" {
		return rejected(StageDecoded, reason, tok.ID), nil
	}
	if req.DeviceID != "" {
		ans, err := c.gate.Query(ctx, req.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("device trust query: %w", err)
		}
		metrics.DeviceChecksTotal.WithLabelValues(string(ans.Status)).Inc()
		if ans.Blocks() {
			return rejected(StageDecoded, ReasonDeviceNotAuthorized, tok.ID), nil
		}
	}

	// DEVICE_CHECKED. An abandoned attempt stops here with nothing claimed.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := c.store.Claim(ctx, repository.ClaimParams{
		TokenID:   tok.ID,
		ClaimedBy: req.PayerAccountRef,
		Channel:   channel,
		DeviceID:  req.DeviceID,
		Amount:    decimalNull(amount),
		At:        c.now().UTC(),
	})
	if err != nil {
		if reason, ok := claimReason(err); ok {
			return rejected(StageDeviceChecked, reason, tok.ID), nil
		}
		return nil, fmt.Errorf("claim token: %w", err)
	}

	// CLAIMED. The claim is committed; caller cancellation no longer applies.
	// Settle what the store recorded, not what the payload carried.
	ctx = context.WithoutCancel(ctx)
	if rec.RedeemedAmount.Valid {
		amount = rec.RedeemedAmount.Decimal
	}
	ref, err := c.settler.Settle(ctx, settlement.Instruction{
		PayerAccountRef: req.PayerAccountRef,
		PayeeID:         rec.PayeeID,
		Amount:          amount,
		Currency:        rec.Currency,
		TokenID:         rec.ID,
	})
	if err != nil {
		c.logger.Error("settlement failed after claim; token stays redeemed",
			zap.String("token_id", rec.ID), zap.Error(err))
		res := rejected(StageClaimed, ReasonSettlementFailed, rec.ID)
		res.Record = rec
		return res, nil
	}
	if err := c.store.AttachSettlement(ctx, rec.ID, ref); err != nil {
		c.logger.Warn("attach settlement reference",
			zap.String("token_id", rec.ID),
			zap.String("settlement_reference", ref),
			zap.Error(err))
	}
	rec.SettlementReference = ref

	// HANDED_OFF
	return &RedeemResult{
		Success:             true,
		Stage:               StageHandedOff,
		TokenID:             rec.ID,
		SettlementReference: ref,
		Record:              rec,
	}, nil
}

// resolveToken decodes the payload, or loads the token by id when no payload is given.
func (c *Coordinator) resolveToken(ctx context.Context, req RedeemRequest) (*domain.Token, Reason, error) {
	if req.Payload == "" {
		if req.TokenID == "" {
			return nil, ReasonInvalidFormat, nil
		}
		rec, err := c.store.Lookup(ctx, req.TokenID)
		if err != nil {
			return nil, "", fmt.Errorf("lookup token: %w", err)
		}
		if rec == nil {
			return nil, ReasonNotFound, nil
		}
		tok := rec.Token
		return &tok, "", nil
	}
	tok, err := c.codec.Decode(req.Payload)
	if err != nil {
		return nil, decodeReason(err), nil
	}
	if req.TokenID != "" && req.TokenID != tok.ID {
		return nil, ReasonInvalidFormat, nil
	}
	return tok, "", nil
}

// settleAmount picks the amount to settle: the token's fixed amount, or the payer-entered one.
func settleAmount(tok *domain.Token, entered decimal.NullDecimal) (decimal.Decimal, Reason) {
	if tok.Amount.Valid {
		if entered.Valid && !entered.Decimal.Equal(tok.Amount.Decimal) {
			return decimal.Decimal{}, ReasonAmountMismatch
		}
		return tok.Amount.Decimal, ""
	}
	if !entered.Valid || !amountInRange(entered.Decimal) {
		return decimal.Decimal{}, ReasonAmountRequired
	}
	return entered.Decimal, ""
}

// Amounts are stored as NUMERIC(19,4).
const amountScale = 4

var maxAmount = decimal.New(1, 15)

func amountInRange(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThan(maxAmount) && d.Equal(d.Truncate(amountScale))
}

func rejected(stage Stage, reason Reason, tokenID string) *RedeemResult {
	return &RedeemResult{Stage: stage, Reason: reason, TokenID: tokenID}
}

func (c *Coordinator) observeRedeem(ctx context.Context, a *attempt, res *RedeemResult, err error, elapsed time.Duration) {
	channel := string(a.channel)
	if channel == "" {
		channel = "UNKNOWN"
	}
	fields := []zap.Field{
		zap.String("channel", channel),
		zap.String("device_id", a.req.DeviceID),
		zap.String("payer", logging.MaskAccount(a.req.PayerAccountRef)),
	}
	if a.token != nil {
		fields = append(fields, zap.String("token_id", a.token.ID))
	}
	if err != nil {
		metrics.OperationalErrorsTotal.WithLabelValues("redeem").Inc()
		c.logger.Error("redemption aborted", append(fields, zap.Error(err))...)
		return
	}

	outcome := metrics.OutcomeSuccess
	if !res.Success {
		outcome = string(res.Reason)
	}
	metrics.RedemptionsTotal.WithLabelValues(channel, outcome, string(res.Stage)).Inc()
	metrics.RedemptionDuration.WithLabelValues(channel).Observe(elapsed.Seconds())

	fields = append(fields, zap.String("stage", string(res.Stage)))
	event := &telemetry.RedemptionEvent{
		EventType: telemetry.EventTokenRedeemed,
		TokenID:   res.TokenID,
		Channel:   string(a.channel),
		DeviceID:  a.req.DeviceID,
		Stage:     string(res.Stage),
	}
	if a.token != nil {
		event.PayeeID = a.token.PayeeID
		event.Currency = a.token.Currency
		event.Amount = amountString(a.token.Amount)
	}
	if res.Success {
		c.logger.Info("token redeemed", append(fields, zap.String("settlement_reference", res.SettlementReference))...)
	} else {
		event.EventType = telemetry.EventRedemptionRejected
		event.Reason = string(res.Reason)
		c.logger.Info("redemption rejected", append(fields, zap.String("reason", string(res.Reason)))...)
	}
	if res.Record != nil && res.Record.RedeemedAmount.Valid {
		event.Amount = res.Record.RedeemedAmount.Decimal.String()
	}
	c.emit(ctx, event)
}

// Token returns the stored record for tokenID, or nil if unknown.
func (c *Coordinator) Token(ctx context.Context, tokenID string) (*domain.Record, error) {
	return c.store.Lookup(ctx, tokenID)
}

// PayeeTokens lists a payee's records newest first.
func (c *Coordinator) PayeeTokens(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Record, error) {
	if strings.TrimSpace(payeeID) == "" {
		return nil, fmt.Errorf("%w: payee id is required", ErrInvalidRequest)
	}
	return c.store.ListByPayee(ctx, payeeID, limit, offset)
}

func (c *Coordinator) emit(ctx context.Context, event *telemetry.RedemptionEvent) {
	if c.emitter == nil {
		return
	}
	event.EventID = uuid.NewString()
	event.Source = eventSource
	event.OccurredAt = c.now().UTC()
	telemetry.EmitAsync(c.emitter, ctx, event)
}

func amountString(a decimal.NullDecimal) string {
	if !a.Valid {
		return ""
	}
	return a.Decimal.String()
}

func decimalNull(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
