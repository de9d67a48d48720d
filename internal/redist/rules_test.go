package redist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRulesRoundTrip(t *testing.T) {
	slots := []string{"4000-4999;9039;7999", "", "9400-9499;9411;9411"}
	rules, err := ParseRules(slots)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, Rule{
		AccountFrom:    "4000",
		AccountTo:      "4999",
		BookingAccount: "9039",
		CounterAccount: "7999",
	}, rules[0])
	require.Equal(t, "4000-4999;9039;7999", rules[0].String())
	require.Equal(t, "9400-9499;9411;9411", rules[1].String())
}

func TestParseRulesSkipsEmptySlots(t *testing.T) {
	rules, err := ParseRules([]string{"", "  ", "", ""})
	require.NoError(t, err)
	require.Empty(t, rules)
}

func TestParseRulesTrimsFields(t *testing.T) {
	rules, err := ParseRules([]string{" 4000 - 4999 ; 9039 ; 7999 "})
	require.NoError(t, err)
	require.Equal(t, "4000-4999;9039;7999", rules[0].String())
}

func TestParseRulesMalformed(t *testing.T) {
	cases := map[string]string{
		"missing counter":   "4000-4999;9039",
		"extra field":       "4000-4999;9039;7999;extra",
		"no range dash":     "40004999;9039;7999",
		"double range dash": "4000-4500-4999;9039;7999",
		"empty booking":     "4000-4999;;7999",
		"empty range end":   "4000-;9039;7999",
	}
	for name, slot := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]string{slot})
			require.ErrorIs(t, err, ErrMalformedRule)
		})
	}
}

func TestParseRulesReportsSlotPosition(t *testing.T) {
	_, err := ParseRules([]string{"4000-4999;9039;7999", "bad"})
	require.ErrorIs(t, err, ErrMalformedRule)
	require.Contains(t, err.Error(), "slot 2")
}
