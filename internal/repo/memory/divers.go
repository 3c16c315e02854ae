package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
)

type diverRepo struct {
	ref *reference
}

func (r *diverRepo) GetProfile(_ context.Context, diverID uuid.UUID) (domain.DiverProfile, error) {
	r.ref.mu.RLock()
	defer r.ref.mu.RUnlock()

	p, ok := r.ref.profiles[diverID]
	if !ok {
		return domain.DiverProfile{}, fmt.Errorf("memory.DiverRepo.GetProfile: %w", domain.ErrNotFound)
	}
	return p, nil
}

func (r *diverRepo) GetContact(_ context.Context, diverID uuid.UUID) (domain.DiverContact, error) {
	r.ref.mu.RLock()
	defer r.ref.mu.RUnlock()

	c, ok := r.ref.contacts[diverID]
	if !ok {
		return domain.DiverContact{}, fmt.Errorf("memory.DiverRepo.GetContact: %w", domain.ErrNotFound)
	}
	return c, nil
}

type siteRepo struct {
	ref *reference
}

func (r *siteRepo) FeePerDiver(_ context.Context, siteID uuid.UUID) (*float64, error) {
	r.ref.mu.RLock()
	defer r.ref.mu.RUnlock()

	fee, ok := r.ref.siteFees[siteID]
	if !ok {
		return nil, nil
	}
	return &fee, nil
}
