package rules

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/dvloznov/finance-client/internal/domain"
)

// ErrPlanChanged is returned when the plan about to be persisted is not the
// one the user confirmed.
var ErrPlanChanged = errors.New("transactions or rules changed since the preview")

// Fingerprint identifies the exact set of changes of an analysis. Two
// analyses share a fingerprint only when they would write the same values to
// the same transactions.
func (a *Analysis) Fingerprint() string {
	if a == nil {
		return ""
	}

	changes := make([]Change, len(a.Changes))
	copy(changes, a.Changes)
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Transaction.ID < changes[j].Transaction.ID
	})

	h := sha256.New()
	fmt.Fprintf(h, "%s\n", a.Kind)
	for _, c := range changes {
		fmt.Fprintf(h, "%d\x00%q\x00%q\n", c.Transaction.ID, domain.StringValue(c.OldValue), c.NewValue)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// ConfirmPlan accepts an analysis only when its fingerprint equals the one
// shown to the user. A differing plan fails with ErrPlanChanged.
func ConfirmPlan(fingerprint string) ConfirmFunc {
	return func(_ context.Context, a *Analysis) (bool, error) {
		if fingerprint == "" || a.Fingerprint() != fingerprint {
			return false, ErrPlanChanged
		}
		return true, nil
	}
}
