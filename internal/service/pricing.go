package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
)

// SiteFeeProvider returns a dive site's conservation fee per diver, or nil
// when the site has none on record. repo.SiteRepo and SiteFeeCache both
// satisfy it.
type SiteFeeProvider interface {
	FeePerDiver(ctx context.Context, siteID uuid.UUID) (*float64, error)
}

// PricingPolicy holds the platform-wide rates used by PricingEngine.
type PricingPolicy struct {
	PlatformFeeRate        float64
	VATRate                float64
	InsuranceFeePerDiver   float64
	DefaultConservationFee float64
}

// DefaultPricingPolicy returns the standard SAR rates.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		PlatformFeeRate:        0.05,
		VATRate:                0.15,
		InsuranceFeePerDiver:   15,
		DefaultConservationFee: 35,
	}
}

// PricingEngine builds the itemised price of a booking.
type PricingEngine struct {
	fees   SiteFeeProvider
	policy PricingPolicy
	logger *slog.Logger
}

// NewPricingEngine constructs a PricingEngine. fees may be nil, in which case
// every site is charged the default conservation fee.
func NewPricingEngine(fees SiteFeeProvider, policy PricingPolicy, opts ...Option) *PricingEngine {
	o := buildOptions(opts)
	return &PricingEngine{fees: fees, policy: policy, logger: o.logger}
}

// Quote prices n divers on trip. Each component is rounded to 2 decimals
// before summing, so the breakdown always adds up to Total exactly.
// VAT applies to base and platform fee only.
// Returns domain.ErrValidation if n < 1.
func (p *PricingEngine) Quote(ctx context.Context, trip domain.Trip, n int, needsEquipment bool) (domain.PriceBreakdown, error) {
	if n < 1 {
		return domain.PriceBreakdown{}, fmt.Errorf("%w: number of divers must be at least 1", domain.ErrValidation)
	}
	divers := float64(n)

	var b domain.PriceBreakdown
	b.Base = domain.Round2(trip.PricePerPerson * divers)
	if needsEquipment && trip.EquipmentRentalPrice != nil {
		b.Equipment = domain.Round2(*trip.EquipmentRentalPrice * divers)
	}
	if !trip.ConservationFeeIncluded && trip.SiteID != nil {
		b.Conservation = domain.Round2(p.feePerDiver(ctx, *trip.SiteID) * divers)
	}
	b.Insurance = domain.Round2(p.policy.InsuranceFeePerDiver * divers)
	b.PlatformFee = domain.Round2(b.Base * p.policy.PlatformFeeRate)
	b.VAT = domain.Round2((b.Base + b.PlatformFee) * p.policy.VATRate)
	b.Discount = 0
	b.Total = b.Sum()
	return b, nil
}

// feePerDiver never fails: lookup errors and unknown sites fall back to the
// default fee.
func (p *PricingEngine) feePerDiver(ctx context.Context, siteID uuid.UUID) float64 {
	if p.fees == nil {
		return p.policy.DefaultConservationFee
	}
	fee, err := p.fees.FeePerDiver(ctx, siteID)
	if err != nil {
		p.logger.WarnContext(ctx, "site fee lookup failed, using default",
			"site_id", siteID, "error", err)
		return p.policy.DefaultConservationFee
	}
	if fee == nil {
		return p.policy.DefaultConservationFee
	}
	return *fee
}
