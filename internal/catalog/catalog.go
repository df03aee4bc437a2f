// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/models"
	"github.com/tomtom215/bookpro/internal/validation"
)

var (
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid catalog input")

	// ErrSlugTaken is returned when no free slug could be derived.
	ErrSlugTaken = errors.New("slug already taken")

	// ErrServiceInUse is returned when deleting a service with upcoming bookings.
	ErrServiceInUse = errors.New("service has upcoming bookings")

	// ErrAlreadyMember is returned when adding a user twice.
	ErrAlreadyMember = errors.New("user is already a member")
)

// Store is the persistence the catalog needs. *database.DB implements it.
type Store interface {
	CreateBusiness(ctx context.Context, b *models.Business) error
	GetBusiness(ctx context.Context, id string) (*models.Business, error)
	GetBusinessBySlug(ctx context.Context, slug string) (*models.Business, error)
	UpdateBusiness(ctx context.Context, b *models.Business) error
	ListBusinessesForUser(ctx context.Context, userID string) ([]models.Business, error)
	AddMembership(ctx context.Context, m *models.Membership) error
	ListMemberships(ctx context.Context, businessID string) ([]models.Membership, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateService(ctx context.Context, s *models.Service) error
	GetService(ctx context.Context, businessID, id string) (*models.Service, error)
	ListServices(ctx context.Context, businessID string, activeOnly bool) ([]models.Service, error)
	UpdateService(ctx context.Context, s *models.Service) error
	DeleteService(ctx context.Context, businessID, id string, now time.Time) error
}

// Limits enforces plan entitlements. The billing service implements it.
type Limits interface {
	CheckLimit(ctx context.Context, businessID string, kind models.LimitKind) error
}

// Invalidator drops cached slot grids. *availability.Service implements it.
type Invalidator interface {
	Invalidate(businessID string)
}

// Auditor records configuration changes. *audit.Recorder implements it.
type Auditor interface {
	Log(ctx context.Context, businessID, actorID, action, resourceType, resourceID string, details any)
}

// Config holds catalog defaults.
type Config struct {
	DefaultTimezone string
	DefaultCurrency string
}

// Service manages businesses, their members and their bookable services.
type Service struct {
	store  Store
	limits Limits
	slots  Invalidator
	audit  Auditor
	cfg    Config
	now    func() time.Time
}

// NewService wires the catalog. slots and audit may be nil.
func NewService(store Store, limits Limits, slots Invalidator, audit Auditor, cfg Config) *Service {
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	return &Service{store: store, limits: limits, slots: slots, audit: audit, cfg: cfg, now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// BusinessInput creates a business.
type BusinessInput struct {
	Name                      string `json:"name" validate:"required,min=2,max=120"`
	Slug                      string `json:"slug" validate:"omitempty,slug,max=64"`
	Timezone                  string `json:"timezone" validate:"omitempty,timezone"`
	Currency                  string `json:"currency" validate:"omitempty,iso4217"`
	Email                     string `json:"email" validate:"omitempty,email"`
	Phone                     string `json:"phone" validate:"omitempty,max=32"`
	CancellationWindowMinutes int    `json:"cancellation_window_minutes" validate:"min=0,max=20160"`
	BufferMinutes             int    `json:"buffer_minutes" validate:"min=0,max=240"`
}

// slug attempts before giving up on suffixes.
const maxSlugAttempts = 5

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL slug from a business name.
func Slugify(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "-")
	}
	if slug == "" {
		slug = "business"
	}
	return slug
}

// CreateBusiness creates a business owned by ownerID. Without an explicit
// slug one is derived from the name, with a short random suffix on collision.
func (s *Service) CreateBusiness(ctx context.Context, ownerID string, in BusinessInput) (*models.Business, error) {
	if err := validation.Err(&in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if in.Timezone == "" {
		in.Timezone = s.cfg.DefaultTimezone
	}
	if in.Currency == "" {
		in.Currency = s.cfg.DefaultCurrency
	}

	explicit := in.Slug != ""
	slug := in.Slug
	if !explicit {
		slug = Slugify(in.Name)
	}

	biz := &models.Business{
		Name:                      strings.TrimSpace(in.Name),
		Timezone:                  in.Timezone,
		Currency:                  strings.ToUpper(in.Currency),
		Email:                     in.Email,
		Phone:                     in.Phone,
		OwnerID:                   ownerID,
		Plan:                      models.PlanFree,
		CancellationWindowMinutes: in.CancellationWindowMinutes,
		BufferMinutes:             in.BufferMinutes,
		CreatedAt:                 s.now().UTC(),
	}

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		biz.ID = uuid.NewString()
		biz.Slug = slug
		if attempt > 0 {
			biz.Slug = slug + "-" + uuid.NewString()[:6]
		}
		err := s.store.CreateBusiness(ctx, biz)
		if err == nil {
			logging.Ctx(ctx).Info().
				Str("business_id", biz.ID).
				Str("slug", biz.Slug).
				Str("owner_id", ownerID).
				Msg("Business created")
			s.record(ctx, biz.ID, ownerID, "business.created", "business", biz.ID, in)
			return biz, nil
		}
		if !errors.Is(err, database.ErrDuplicate) {
			return nil, err
		}
		if explicit {
			return nil, fmt.Errorf("%w: %s", ErrSlugTaken, slug)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSlugTaken, slug)
}

// GetBusiness loads a business by id.
func (s *Service) GetBusiness(ctx context.Context, id string) (*models.Business, error) {
	return s.store.GetBusiness(ctx, id)
}

// BusinessBySlug loads a business by its public slug.
func (s *Service) BusinessBySlug(ctx context.Context, slug string) (*models.Business, error) {
	return s.store.GetBusinessBySlug(ctx, strings.ToLower(slug))
}

// BusinessesForUser lists the businesses a user operates.
func (s *Service) BusinessesForUser(ctx context.Context, userID string) ([]models.Business, error) {
	return s.store.ListBusinessesForUser(ctx, userID)
}

// UpdateBusiness applies a partial profile update. Changes to timezone or
// buffer alter the slot grid, so the cache is dropped.
func (s *Service) UpdateBusiness(ctx context.Context, actorID, id string, upd models.BusinessUpdate) (*models.Business, error) {
	if err := validation.Err(&upd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	biz, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Apply(biz)
	biz.Currency = strings.ToUpper(biz.Currency)
	if err := s.store.UpdateBusiness(ctx, biz); err != nil {
		return nil, err
	}
	s.invalidate(id)
	s.record(ctx, id, actorID, "business.updated", "business", id, upd)
	return biz, nil
}

// AddStaff links an existing account to the business as staff, within the
// plan's staff allowance.
func (s *Service) AddStaff(ctx context.Context, actorID, businessID, email string) (*models.Membership, error) {
	if err := validation.GetValidator().Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: email: %w", ErrInvalidInput, err)
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if s.limits != nil {
		if err := s.limits.CheckLimit(ctx, businessID, models.LimitStaff); err != nil {
			return nil, err
		}
	}
	m := &models.Membership{
		BusinessID: businessID,
		UserID:     user.ID,
		Role:       models.RoleStaff,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.AddMembership(ctx, m); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrAlreadyMember
		}
		return nil, err
	}
	s.record(ctx, businessID, actorID, "member.added", "membership", user.ID, map[string]string{"role": string(m.Role)})
	return m, nil
}

// Members lists the business's memberships.
func (s *Service) Members(ctx context.Context, businessID string) ([]models.Membership, error) {
	return s.store.ListMemberships(ctx, businessID)
}

func (s *Service) invalidate(businessID string) {
	if s.slots != nil {
		s.slots.Invalidate(businessID)
	}
}

func (s *Service) record(ctx context.Context, businessID, actorID, action, resourceType, resourceID string, details any) {
	if s.audit != nil {
		s.audit.Log(ctx, businessID, actorID, action, resourceType, resourceID, details)
	}
}
