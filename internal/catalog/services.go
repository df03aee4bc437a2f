// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/models"
	"github.com/tomtom215/bookpro/internal/validation"
)

// ListServices returns a business's services. Public callers pass activeOnly.
func (s *Service) ListServices(ctx context.Context, businessID string, activeOnly bool) ([]models.Service, error) {
	return s.store.ListServices(ctx, businessID, activeOnly)
}

// GetService loads one service of a business.
func (s *Service) GetService(ctx context.Context, businessID, id string) (*models.Service, error) {
	return s.store.GetService(ctx, businessID, id)
}

// CreateService adds a bookable service within the plan's service allowance.
// Prices are in the business currency.
func (s *Service) CreateService(ctx context.Context, actorID, businessID string, in models.ServiceInput) (*models.Service, error) {
	if err := validateServiceInput(&in); err != nil {
		return nil, err
	}
	biz, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if s.limits != nil {
		if err := s.limits.CheckLimit(ctx, businessID, models.LimitServices); err != nil {
			return nil, err
		}
	}

	svc := &models.Service{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		Currency:   biz.Currency,
		Active:     true,
	}
	applyServiceInput(svc, in)
	if err := s.store.CreateService(ctx, svc); err != nil {
		return nil, err
	}
	s.record(ctx, businessID, actorID, "service.created", "service", svc.ID, in)
	return svc, nil
}

// UpdateService replaces the editable fields of a service.
func (s *Service) UpdateService(ctx context.Context, actorID, businessID, id string, in models.ServiceInput) (*models.Service, error) {
	if err := validateServiceInput(&in); err != nil {
		return nil, err
	}
	svc, err := s.store.GetService(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	applyServiceInput(svc, in)
	if err := s.store.UpdateService(ctx, svc); err != nil {
		return nil, err
	}
	s.invalidate(businessID)
	s.record(ctx, businessID, actorID, "service.updated", "service", id, in)
	return svc, nil
}

// DeleteService removes a service. Services with upcoming bookings must be
// deactivated instead.
func (s *Service) DeleteService(ctx context.Context, actorID, businessID, id string) error {
	err := s.store.DeleteService(ctx, businessID, id, s.now())
	if errors.Is(err, database.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrServiceInUse, err)
	}
	if err != nil {
		return err
	}
	s.invalidate(businessID)
	s.record(ctx, businessID, actorID, "service.deleted", "service", id, nil)
	return nil
}

func validateServiceInput(in *models.ServiceInput) error {
	if err := validation.Err(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if in.PaymentMode != models.PaymentModeNone && in.PriceCents == 0 {
		return fmt.Errorf("%w: a free service cannot collect payment", ErrInvalidInput)
	}
	return nil
}

func applyServiceInput(svc *models.Service, in models.ServiceInput) {
	svc.Name = strings.TrimSpace(in.Name)
	svc.Description = in.Description
	svc.DurationMinutes = in.DurationMinutes
	svc.PriceCents = in.PriceCents
	svc.PaymentMode = in.PaymentMode
	svc.DepositPercent = 0
	if in.PaymentMode == models.PaymentModeDeposit {
		svc.DepositPercent = in.DepositPercent
	}
	if in.Active != nil {
		svc.Active = *in.Active
	}
}
