// Package admin is the privileged back-office surface: catalog edits, order
// fulfillment and admin-set management. Every call first resolves the caller
// and checks that it belongs to the admin set.
package admin

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/imrishuroy/lbvp-storefront/internal/apperr"
	"github.com/imrishuroy/lbvp-storefront/internal/catalog"
	"github.com/imrishuroy/lbvp-storefront/internal/identity"
	"github.com/imrishuroy/lbvp-storefront/internal/logging"
	"github.com/imrishuroy/lbvp-storefront/internal/orders"
)

// MediaUploader stores an image and returns its public URL.
type MediaUploader interface {
	Upload(ctx context.Context, name, contentType string, body io.Reader) (string, error)
}

type Service struct {
	sessions  identity.SessionSource
	admins    *Store
	catalog   *catalog.Store
	orders    *orders.Store
	lifecycle *orders.Service
	media     MediaUploader
	logger    *zap.Logger
}

func NewService(sessions identity.SessionSource, admins *Store, cat *catalog.Store, store *orders.Store, lifecycle *orders.Service, media MediaUploader, logger *zap.Logger) *Service {
	return &Service{
		sessions:  sessions,
		admins:    admins,
		catalog:   cat,
		orders:    store,
		lifecycle: lifecycle,
		media:     media,
		logger:    logging.OrNop(logger),
	}
}

// requireAdmin returns the calling principal when it is an admin.
func (s *Service) requireAdmin(ctx context.Context) (*identity.Principal, error) {
	p, err := s.sessions.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "sign in required")
	}
	ok, err := s.admins.IsAdmin(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("admin access denied", zap.String("principal_id", p.ID))
		return nil, apperr.New(apperr.CodeForbidden, "admin access required")
	}
	return p, nil
}

// Me returns the caller when it is an admin.
func (s *Service) Me(ctx context.Context) (*identity.Principal, error) {
	return s.requireAdmin(ctx)
}

func (s *Service) UpsertItem(ctx context.Context, it catalog.Item) (*catalog.Item, error) {
	p, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	saved, err := s.catalog.Upsert(ctx, it)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product saved", zap.String("product_id", saved.ID), zap.String("by", p.ID))
	return saved, nil
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	p, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := s.catalog.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("product_id", id), zap.String("by", p.ID))
	return nil
}

// AttachImage uploads an image and points the item at it. The upload
// happens first; a failed upload leaves the item unchanged.
func (s *Service) AttachImage(ctx context.Context, itemID, name, contentType string, body io.Reader) (*catalog.Item, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if s.media == nil {
		return nil, apperr.New(apperr.CodeExternalService, "media storage is not configured")
	}
	existing, err := s.catalog.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NewNotFound("product %s not found", itemID)
	}
	url, err := s.media.Upload(ctx, name, contentType, body)
	if err != nil {
		return nil, err
	}
	return s.catalog.SetImage(ctx, itemID, url)
}

// UpdateOrderStatus moves an order to status. Unknown values are rejected
// with InvalidStatus before anything is read.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID, status string, override bool) (*orders.Order, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	next, err := orders.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.lifecycle.ChangeStatus(ctx, orderID, next, override)
}

func (s *Service) AssignShipment(ctx context.Context, orderID string, sh orders.Shipment) (*orders.Order, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.lifecycle.AssignShipment(ctx, orderID, sh)
}

func (s *Service) PostCourierUpdate(ctx context.Context, orderID string, u orders.CourierUpdate) (*orders.Order, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.lifecycle.AddCourierUpdate(ctx, orderID, u)
}

// ConfirmPayment records a payment outcome by hand, e.g. a UPI transfer
// checked against the bank statement.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, status string) (*orders.Order, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	ps, err := orders.ParsePaymentStatus(status)
	if err != nil {
		return nil, err
	}
	return s.lifecycle.SetPaymentStatus(ctx, orderID, ps)
}

func (s *Service) ListAdmins(ctx context.Context) ([]Principal, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.admins.List(ctx)
}

func (s *Service) GrantAdmin(ctx context.Context, principalID, email string) (*Principal, error) {
	caller, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	granted, err := s.admins.Grant(ctx, principalID, email, caller.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin granted", zap.String("principal_id", granted.ID), zap.String("by", caller.ID))
	return granted, nil
}

// RemoveAdmin revokes principalID. Callers can never remove themselves.
func (s *Service) RemoveAdmin(ctx context.Context, principalID string) error {
	caller, err := s.requireAdmin(ctx)
	if err != nil {
		return err
	}
	principalID = strings.TrimSpace(principalID)
	if principalID == caller.ID {
		return apperr.New(apperr.CodeSelfDemotionForbidden, "you cannot remove your own admin access")
	}
	if err := s.admins.Remove(ctx, principalID); err != nil {
		return err
	}
	s.logger.Info("admin removed", zap.String("principal_id", principalID), zap.String("by", caller.ID))
	return nil
}
