// Package periodlock defines calendar-period locks that freeze closed
// accounting periods against further ledger writes.
package periodlock

import (
	"fmt"
	"regexp"
	"time"

	"github.com/bookline/ledger/id"
)

// Period is a calendar year-month bucket in "YYYY-MM" form, e.g. "2024-01".
type Period string

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// PeriodOf derives the period key from a date's year and month.
func PeriodOf(t time.Time) Period {
	return Period(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// ParsePeriod validates a "YYYY-MM" string.
func ParsePeriod(s string) (Period, error) {
	if !periodPattern.MatchString(s) {
		return "", fmt.Errorf("periodlock: invalid period %q, want YYYY-MM", s)
	}
	return Period(s), nil
}

// String returns the period key.
func (p Period) String() string { return string(p) }

// Validate checks the period is well-formed.
func (p Period) Validate() error {
	_, err := ParsePeriod(string(p))
	return err
}

// Lock marks one tenant's period as closed. Locking is monotonic: a lock is
// never removed, and locking an already-locked period is a no-op.
type Lock struct {
	ID        id.PeriodLockID `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Period    Period          `json:"period"`
	LockedBy  string          `json:"locked_by"`
	CreatedAt time.Time       `json:"created_at"`
}
