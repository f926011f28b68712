// Package notes generates the three audience-specific release-note documents
// from a normalized change-set.
package notes

import (
	"fmt"
)

// Audience identifies one of the three generated document variants.
type Audience string

const (
	// AudienceCustomer is the end-user facing document.
	AudienceCustomer Audience = "customer"
	// AudienceDeveloper is the technical document for integrating engineers.
	AudienceDeveloper Audience = "developer"
	// AudienceStakeholder is the business-impact document.
	AudienceStakeholder Audience = "stakeholder"
)

// Audiences returns all audiences in canonical order.
func Audiences() []Audience {
	return []Audience{AudienceCustomer, AudienceDeveloper, AudienceStakeholder}
}

// ParseAudience validates an audience string.
func ParseAudience(s string) (Audience, error) {
	switch Audience(s) {
	case AudienceCustomer, AudienceDeveloper, AudienceStakeholder:
		return Audience(s), nil
	default:
		return "", fmt.Errorf("unknown audience %q", s)
	}
}

// DocumentSet holds the three generated documents plus usage accounting.
// All three audiences share a single model identifier per invocation so the
// generation is auditable.
type DocumentSet struct {
	CustomerText    string
	DeveloperText   string
	StakeholderText string
	TokensUsed      int
	Model           string
}

// ForAudience returns the document for the given audience. The audience
// values are closed; constructors validate them, so an unknown value here is
// a programmer error and panics.
func (d *DocumentSet) ForAudience(a Audience) string {
	switch a {
	case AudienceCustomer:
		return d.CustomerText
	case AudienceDeveloper:
		return d.DeveloperText
	case AudienceStakeholder:
		return d.StakeholderText
	default:
		panic(fmt.Sprintf("notes: unknown audience %q", a))
	}
}
