package rules

import (
	"fmt"
	"math"

	"github.com/dalemusser/fundhub/internal/app/store/docstore"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
	"github.com/dalemusser/fundhub/internal/domain/models"
)

// currency keeps donation amounts in integer cents.
//
// A record that already carries legacyAmount or legacyCurrencyUnit has been
// converted once and is never converted again. Records with amountCents are
// cents-denominated and never look like dollars.
type currency struct {
	convertDollars bool
	threshold      float64
}

func (currency) Family() policy.Family { return policy.FamilyCurrency }

func (r currency) Evaluate(rec Record, _ Lookup, out *Outcome) {
	view := out.View()

	centsRaw, hasCents := view[models.FieldAmountCents]
	raw, present := view[models.FieldAmount]
	if (!present || raw == nil) && hasCents {
		cents, ok := docstore.Number(centsRaw)
		if !ok || cents < 0 {
			out.Flag(CodeInvalidAmount, fmt.Sprintf("%s %v", models.FieldAmountCents, centsRaw))
			return
		}
		out.Set(models.FieldAmount, toInt(cents))
		raw, present = view[models.FieldAmount], true
	}
	if !present || raw == nil {
		return
	}

	n, ok := docstore.Number(raw)
	if !ok {
		out.Flag(CodeInvalidAmount, fmt.Sprintf("%v", raw))
		return
	}
	if n < 0 {
		out.Flag(CodeInvalidAmount, fmt.Sprintf("%v", n))
		return
	}

	_, hasLegacy := view[models.FieldLegacyAmount]
	_, hasUnit := view[models.FieldLegacyCurrencyUnit]
	if r.convertDollars && !hasCents && !hasLegacy && !hasUnit && n > 0 && n < r.threshold {
		out.Set(models.FieldAmount, int64(math.Round(n*100)))
		out.Set(models.FieldLegacyAmount, raw)
		out.Set(models.FieldLegacyCurrencyUnit, models.UnitDollars)
		return
	}

	if n != math.Trunc(n) {
		out.Flag(CodeNonIntegerAmount, fmt.Sprintf("%v", n))
	}
}

// toInt keeps whole numbers as int64 so stored cents stay integral.
func toInt(n float64) any {
	if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		return int64(n)
	}
	return n
}
