package domain

import (
	"strings"
	"time"
	"unicode"
)

// Member is an accepted applicant. The legal Name stays internal; only the
// pseudonym and the derived internal code ever leave the system.
type Member struct {
	ID              int32      `json:"id"`
	Name            string     `json:"-"`
	Pseudonym       string     `json:"pseudonym"`
	Email           string     `json:"email"`
	Minor           bool       `json:"minor"`
	ExpressionTypes []string   `json:"expression_types"`
	InternalCode    string     `json:"internal_code"`
	CohortID        *int32     `json:"cohort_id"`
	ApprovedOn      *time.Time `json:"approved_on"`
	MigratedOn      *time.Time `json:"migrated_on"`
	CredentialHash  string     `json:"-"`
	CreatedOn       time.Time  `json:"created_on"`
	UpdatedOn       time.Time  `json:"updated_on"`
}

// InternalCode derives the human-readable member code from the name
// initials, the minor/adult flag and the approval date. Deterministic for
// identical inputs, e.g. "Jane R. Doe", adult, 2026-08-28 -> "JRD-A-20260828".
func InternalCode(name string, minor bool, approvedOn time.Time) string {
	var initials strings.Builder
	for _, part := range strings.Fields(name) {
		for _, r := range part {
			if unicode.IsLetter(r) {
				initials.WriteRune(unicode.ToUpper(r))
				break
			}
		}
	}
	flag := "A"
	if minor {
		flag = "M"
	}
	return initials.String() + "-" + flag + "-" + approvedOn.Format("20060102")
}

// MinorAdultFlag is the single-letter designation sent to the registrar.
func (m *Member) MinorAdultFlag() string {
	if m.Minor {
		return "M"
	}
	return "A"
}
