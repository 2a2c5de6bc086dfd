package inspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name     string
		in       string
		expected string
	}{
		{"simple id literal", "SELECT * FROM t WHERE id=5", "SELECT * FROM t WHERE id=?"},
		{"spaced id literal", "SELECT * FROM t WHERE id = 42", "SELECT * FROM t WHERE id = ?"},
		{"multiple literals", "SELECT * FROM t LIMIT 10 OFFSET 20", "SELECT * FROM t LIMIT ? OFFSET ?"},
		{"digit in identifier suffix", "SELECT addr_line1 FROM t", "SELECT addr_line1 FROM t"},
		{"digit inside identifier", "SELECT sha256 FROM t", "SELECT sha256 FROM t"},
		{"table alias with digit", "SELECT t1.id FROM t t1 WHERE t1.id = 5", "SELECT t1.id FROM t t1 WHERE t1.id = ?"},
		{"digits inside quoted string are replaced", "SELECT * FROM t WHERE name = 'order 66'", "SELECT * FROM t WHERE name = 'order ?'"},
		{"empty string", "", ""},
		{"no digits", "SELECT a FROM b", "SELECT a FROM b"},
		{"non-ascii passes through", "SELECT 'héllo', 42 FROM t", "SELECT 'héllo', ? FROM t"},
		{"in list", "SELECT * FROM t WHERE id IN (1, 2, 3)", "SELECT * FROM t WHERE id IN (?, ?, ?)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			assert.Equal(t, tc.expected, got)
			assert.Equal(t, got, Normalize(got), "normalization must be idempotent")
		})
	}
}

func TestNormalize_SameSignatureForDifferentIDs(t *testing.T) {
	a := Normalize("SELECT * FROM t WHERE id=5")
	b := Normalize("SELECT * FROM t WHERE id=9")
	assert.Equal(t, a, b, "queries differing only in integer literals must share a signature")
}
