package rules

import (
	"github.com/dvloznov/finance-client/internal/domain"
)

// Change is one planned update: a transaction and the value the rule set
// would assign to the field of Kind.
type Change struct {
	Kind        domain.RuleKind
	Transaction domain.Transaction
	OldValue    *string
	NewValue    string
}

// Preview returns the display form of c.
func (c Change) Preview() domain.RuleChangePreview {
	return domain.RuleChangePreview{
		TransactionID: c.Transaction.ID,
		Description:   domain.StringValue(c.Transaction.Description),
		OldValue:      c.OldValue,
		NewValue:      c.NewValue,
	}
}

// Update returns the write model that applies c, carrying every other field
// of the transaction unchanged.
func (c Change) Update() domain.TransactionFormData {
	form := c.Transaction.FormData()
	if c.Kind == domain.RuleKindCategory {
		form.CategoryName = c.NewValue
	} else {
		form.VendorName = c.NewValue
	}
	return form
}

// Plan computes the transactions whose kind field would change under rules.
// A transaction is included only when a rule matches with a non-empty value
// that differs from the current value, so planning the result of applying a
// plan yields nothing. Output keeps input order.
func Plan(kind domain.RuleKind, transactions []domain.Transaction, rules []domain.Rule) []Change {
	return PlanWith(kind, transactions, NewMatcher(rules))
}

// PlanWith is Plan with a prebuilt matcher.
func PlanWith(kind domain.RuleKind, transactions []domain.Transaction, m *Matcher) []Change {
	var changes []Change
	for _, txn := range transactions {
		if txn.Description == nil {
			continue
		}
		newValue, ok := m.Match(*txn.Description)
		if !ok || newValue == "" {
			continue
		}

		current := kind.CurrentValue(txn)
		if current != nil && *current == newValue {
			continue
		}

		changes = append(changes, Change{
			Kind:        kind,
			Transaction: txn,
			OldValue:    current,
			NewValue:    newValue,
		})
	}
	return changes
}

// Previews returns the display form of changes.
func Previews(changes []Change) []domain.RuleChangePreview {
	out := make([]domain.RuleChangePreview, len(changes))
	for i, c := range changes {
		out[i] = c.Preview()
	}
	return out
}

// Updates returns the write models of changes.
func Updates(changes []Change) []domain.TransactionFormData {
	out := make([]domain.TransactionFormData, len(changes))
	for i, c := range changes {
		out[i] = c.Update()
	}
	return out
}
