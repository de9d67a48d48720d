package redist

import (
	"fmt"
	"strings"
)

// MaxRuleSlots is the number of rule configuration slots the host supplies.
const MaxRuleSlots = 8

// ParseRules turns raw configuration slots into redistribution rules. Empty
// slots are skipped; a non-empty slot must hold exactly
// "<from>-<to>;<booking>;<counter>". Rule order follows slot order.
func ParseRules(slots []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(slots))
	for i, slot := range slots {
		raw := strings.TrimSpace(slot)
		if raw == "" {
			continue
		}
		rule, err := parseSlot(raw)
		if err != nil {
			return nil, fmt.Errorf("slot %d %q: %w", i+1, raw, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseSlot(raw string) (Rule, error) {
	parts := strings.Split(raw, ";")
	if len(parts) != 3 {
		return Rule{}, fmt.Errorf("%w: want three ;-separated fields", ErrMalformedRule)
	}
	span := strings.Split(parts[0], "-")
	if len(span) != 2 {
		return Rule{}, fmt.Errorf("%w: account range must be <from>-<to>", ErrMalformedRule)
	}
	rule := Rule{
		AccountFrom:    strings.TrimSpace(span[0]),
		AccountTo:      strings.TrimSpace(span[1]),
		BookingAccount: strings.TrimSpace(parts[1]),
		CounterAccount: strings.TrimSpace(parts[2]),
	}
	if rule.AccountFrom == "" || rule.AccountTo == "" || rule.BookingAccount == "" || rule.CounterAccount == "" {
		return Rule{}, fmt.Errorf("%w: empty field", ErrMalformedRule)
	}
	return rule, nil
}
