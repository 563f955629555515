package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	devicev1 "github.com/thependalorian/ketchup-smartpay-sub006/api/device/v1"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/domain"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/repository"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/trust"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/platform/rbac"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/security"
	tokendomain "github.com/thependalorian/ketchup-smartpay-sub006/internal/token/domain"
)

// Invalidator drops a cached trust answer after a state change. Implemented by trust.CachedGate.
type Invalidator interface {
	Invalidate(ctx context.Context, deviceID string) error
}

var _ Invalidator = (*trust.CachedGate)(nil)

// Server implements DeviceService over the terminal registry the trust gate reads.
type Server struct {
	repo   repository.Repository
	cache  Invalidator
	logger *zap.Logger
	now    func() time.Time
}

// NewServer returns a new Device gRPC server. Pass nil repo for stub (Unimplemented).
// cache may be nil when no trust cache is configured.
func NewServer(repo repository.Repository, cache Invalidator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// RegisterDevice adds a terminal for the merchant. The device id is generated when omitted.
func (s *Server) RegisterDevice(ctx context.Context, req *devicev1.RegisterDeviceRequest) (*devicev1.RegisterDeviceResponse, error) {
	if s.repo == nil {
		return nil, status.Error(codes.Unimplemented, "method RegisterDevice not implemented")
	}
	merchantID := strings.TrimSpace(req.MerchantID)
	if merchantID == "" {
		return nil, status.Error(codes.InvalidArgument, "merchant_id is required")
	}
	if _, err := rbac.RequireMerchant(ctx, merchantID); err != nil {
		return nil, err
	}
	channel, ok := tokendomain.ParseChannel(req.Channel)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "channel must be POS, ATM, USSD or APP")
	}
	id := strings.TrimSpace(req.DeviceID)
	if id == "" {
		id = uuid.NewString()
	}
	d := &domain.Device{
		ID:         id,
		MerchantID: merchantID,
		Channel:    string(channel),
		Label:      strings.TrimSpace(req.Label),
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, s.toStatus(err, "register device")
	}
	s.logger.Info("device registered",
		zap.String("device_id", d.ID),
		zap.String("merchant_id", d.MerchantID),
		zap.String("channel", d.Channel),
	)
	return &devicev1.RegisterDeviceResponse{Device: deviceToProto(d)}, nil
}

// GetDevice returns a device by ID.
func (s *Server) GetDevice(ctx context.Context, req *devicev1.GetDeviceRequest) (*devicev1.GetDeviceResponse, error) {
	if s.repo == nil {
		return nil, status.Error(codes.Unimplemented, "method GetDevice not implemented")
	}
	d, err := s.owned(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}
	return &devicev1.GetDeviceResponse{Device: deviceToProto(d)}, nil
}

// ListDevices returns the merchant's devices ordered by id.
func (s *Server) ListDevices(ctx context.Context, req *devicev1.ListDevicesRequest) (*devicev1.ListDevicesResponse, error) {
	if s.repo == nil {
		return nil, status.Error(codes.Unimplemented, "method ListDevices not implemented")
	}
	if _, err := rbac.RequireMerchant(ctx, req.MerchantID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByMerchant(ctx, req.MerchantID)
	if err != nil {
		return nil, s.toStatus(err, "list devices")
	}
	devices := make([]*devicev1.Device, 0, len(list))
	for _, d := range list {
		devices = append(devices, deviceToProto(d))
	}
	return &devicev1.ListDevicesResponse{Devices: devices}, nil
}

// SuspendDevice temporarily blocks the terminal from redeeming.
func (s *Server) SuspendDevice(ctx context.Context, req *devicev1.DeviceRequest) (*devicev1.DeviceResponse, error) {
	if s.repo == nil {
		return nil, status.Error(codes.Unimplemented, "method SuspendDevice not implemented")
	}
	if _, err := s.owned(ctx, req.DeviceID); err != nil {
		return nil, err
	}
	return s.change(ctx, "suspend device", req.DeviceID, func() error {
		return s.repo.Suspend(ctx, req.DeviceID, s.now().UTC())
	})
}

// ReinstateDevice lifts a suspension. Revoked devices cannot be reinstated.
func (s *Server) ReinstateDevice(ctx context.Context, req *devicev1.DeviceRequest) (*devicev1.DeviceResponse, error) {
	if s.repo == nil {
		return nil, status.Error(codes.Unimplemented, "method ReinstateDevice not implemented")
	}
	if _, err := s.owned(ctx, req.DeviceID); err != nil {
		return nil, err
	}
	return s.change(ctx, "reinstate device", req.DeviceID, func() error {
		return s.repo.Reinstate(ctx, req.DeviceID)
	})
}

// RevokeDevice kills the terminal permanently. Operators only.
func (s *Server) RevokeDevice(ctx context.Context, req *devicev1.DeviceRequest) (*devicev1.DeviceResponse, error) {
	if s.repo == nil {
		return nil, status.Error(codes.Unimplemented, "method RevokeDevice not implemented")
	}
	if _, err := rbac.RequireRole(ctx, security.RoleOperator); err != nil {
		return nil, err
	}
	return s.change(ctx, "revoke device", req.DeviceID, func() error {
		return s.repo.Revoke(ctx, req.DeviceID, s.now().UTC())
	})
}

// RecordHeartbeat stamps last_seen_at; acquirers call it when a terminal checks in.
func (s *Server) RecordHeartbeat(ctx context.Context, req *devicev1.DeviceRequest) (*devicev1.DeviceResponse, error) {
	if s.repo == nil {
		return nil, status.Error(codes.Unimplemented, "method RecordHeartbeat not implemented")
	}
	if _, err := rbac.RequireRole(ctx, security.RoleAcquirer); err != nil {
		return nil, err
	}
	if req.DeviceID == "" {
		return nil, status.Error(codes.InvalidArgument, "device_id is required")
	}
	if err := s.repo.UpdateLastSeen(ctx, req.DeviceID, s.now().UTC()); err != nil {
		return nil, s.toStatus(err, "record heartbeat")
	}
	return s.reload(ctx, req.DeviceID)
}

// owned loads the device and checks the caller may act for its merchant.
// A merchant addressing another merchant's device gets NotFound.
func (s *Server) owned(ctx context.Context, id string) (*domain.Device, error) {
	if _, err := rbac.RequireRole(ctx, security.RoleMerchant); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "device_id is required")
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.toStatus(err, "get device")
	}
	if d == nil {
		return nil, status.Error(codes.NotFound, "device not found")
	}
	if _, err := rbac.RequireMerchant(ctx, d.MerchantID); err != nil {
		return nil, status.Error(codes.NotFound, "device not found")
	}
	return d, nil
}

func (s *Server) change(ctx context.Context, op, id string, fn func() error) (*devicev1.DeviceResponse, error) {
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "device_id is required")
	}
	if err := fn(); err != nil {
		return nil, s.toStatus(err, op)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.Warn("device trust cache invalidate failed", zap.String("device_id", id), zap.Error(err))
		}
	}
	s.logger.Info(op, zap.String("device_id", id))
	return s.reload(ctx, id)
}

func (s *Server) reload(ctx context.Context, id string) (*devicev1.DeviceResponse, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.toStatus(err, "get device")
	}
	if d == nil {
		return nil, status.Error(codes.NotFound, "device not found")
	}
	return &devicev1.DeviceResponse{Device: deviceToProto(d)}, nil
}

func (s *Server) toStatus(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return status.Error(codes.NotFound, "device not found")
	case errors.Is(err, repository.ErrRevoked):
		return status.Error(codes.FailedPrecondition, "device is revoked")
	case errors.Is(err, repository.ErrDuplicateID):
		return status.Error(codes.AlreadyExists, "device already registered")
	}
	s.logger.Error(op+" failed", zap.Error(err))
	return status.Error(codes.Internal, "device registry unavailable")
}

func deviceToProto(d *domain.Device) *devicev1.Device {
	if d == nil {
		return nil
	}
	return &devicev1.Device{
		DeviceID:    d.ID,
		MerchantID:  d.MerchantID,
		Channel:     d.Channel,
		Label:       d.Label,
		Status:      string(trust.AnswerFor(d).Status),
		SuspendedAt: d.SuspendedAt,
		RevokedAt:   d.RevokedAt,
		LastSeenAt:  d.LastSeenAt,
		CreatedAt:   d.CreatedAt,
	}
}
