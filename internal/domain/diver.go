package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus of a diver's certification card.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Certification is one certification card held by a diver.
type Certification struct {
	Level              string             `json:"level"`
	Agency             string             `json:"agency,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// DiverProfile is the subset of a diver's profile needed for eligibility.
type DiverProfile struct {
	DiverID          uuid.UUID       `json:"diver_id"`
	DateOfBirth      *time.Time      `json:"date_of_birth,omitempty"`
	TotalLoggedDives int             `json:"total_logged_dives"`
	Certifications   []Certification `json:"certifications"`
}

// AdultAge is the age from which no parent consent is needed.
const AdultAge = 18

// AgeAt returns the diver's age in whole years at t.
// ok is false when the date of birth is unknown.
func (p DiverProfile) AgeAt(t time.Time) (age int, ok bool) {
	if p.DateOfBirth == nil {
		return 0, false
	}
	dob := p.DateOfBirth.UTC()
	t = t.UTC()
	age = t.Year() - dob.Year()
	if t.Month() < dob.Month() || (t.Month() == dob.Month() && t.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return age, true
}

// IsMinorAt reports whether the diver is known to be under AdultAge at t.
func (p DiverProfile) IsMinorAt(t time.Time) bool {
	age, ok := p.AgeAt(t)
	return ok && age < AdultAge
}

// DiverContact is how a diver can be reached by notifications.
type DiverContact struct {
	DiverID        uuid.UUID
	Name           string
	Email          string
	TelegramChatID *int64
}

// Eligibility is the outcome of checking a diver against a trip's policy.
// Failing eligibility is a normal result, not an error.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}
