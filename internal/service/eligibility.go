package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/reefline/divetrips/internal/domain"
)

// CertificationLevels is the certification hierarchy, lowest first.
var CertificationLevels = []string{
	"Open Water",
	"Advanced Open Water",
	"Rescue Diver",
	"Divemaster",
	"Instructor",
}

// ReasonProfileIncomplete is reported when a gated trip is checked against a
// diver who has no profile on file.
const ReasonProfileIncomplete = "diver profile incomplete"

// CertificationRank returns the position of level in CertificationLevels,
// compared case-insensitively. ok is false for unknown levels.
func CertificationRank(level string) (rank int, ok bool) {
	level = strings.TrimSpace(level)
	for i, l := range CertificationLevels {
		if strings.EqualFold(l, level) {
			return i, true
		}
	}
	return 0, false
}

// EligibilityEvaluator decides whether a diver may book a trip.
// It is pure: the same profile, policy and instant always give the same result.
type EligibilityEvaluator struct{}

// NewEligibilityEvaluator returns an EligibilityEvaluator.
func NewEligibilityEvaluator() *EligibilityEvaluator {
	return &EligibilityEvaluator{}
}

// Evaluate checks profile against policy as of now. Every failing rule adds
// its own reason. A nil profile only passes an ungated policy.
func (e *EligibilityEvaluator) Evaluate(profile *domain.DiverProfile, policy domain.EligibilityPolicy, now time.Time) domain.Eligibility {
	if !policy.Gated() {
		return domain.Eligibility{Eligible: true, Reasons: []string{}}
	}
	if profile == nil {
		return domain.Eligibility{Eligible: false, Reasons: []string{ReasonProfileIncomplete}}
	}

	reasons := []string{}

	if policy.MinAge > 0 || policy.MaxAge != nil {
		age, ok := profile.AgeAt(now)
		switch {
		case !ok:
			reasons = append(reasons, "date of birth is required for this trip's age limits")
		default:
			if age < policy.MinAge {
				reasons = append(reasons, fmt.Sprintf("diver must be at least %d years old", policy.MinAge))
			}
			if policy.MaxAge != nil && age > *policy.MaxAge {
				reasons = append(reasons, fmt.Sprintf("diver must be at most %d years old", *policy.MaxAge))
			}
		}
	}

	if policy.MinLoggedDives > 0 && profile.TotalLoggedDives < policy.MinLoggedDives {
		reasons = append(reasons, fmt.Sprintf("at least %d logged dives required, diver has %d",
			policy.MinLoggedDives, profile.TotalLoggedDives))
	}

	if policy.MinCertificationLevel != "" && !holdsLevel(profile.Certifications, policy.MinCertificationLevel) {
		reasons = append(reasons, fmt.Sprintf("a verified %s certification or higher is required", policy.MinCertificationLevel))
	}

	return domain.Eligibility{Eligible: len(reasons) == 0, Reasons: reasons}
}

// holdsLevel reports whether any verified certification ranks at or above
// required. An unknown required level can never be satisfied.
func holdsLevel(certs []domain.Certification, required string) bool {
	want, ok := CertificationRank(required)
	if !ok {
		return false
	}
	for _, c := range certs {
		if c.VerificationStatus != domain.VerificationVerified {
			continue
		}
		if rank, ok := CertificationRank(c.Level); ok && rank >= want {
			return true
		}
	}
	return false
}
