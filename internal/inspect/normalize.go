package inspect

import "regexp"

// integerLiteral matches a standalone run of decimal digits. The word
// boundaries leave digits that touch identifier characters (letters,
// underscores) alone, so columns like addr_line1 or functions like sha256
// are not mangled. Digits inside quoted SQL strings are still replaced; the
// heuristic is string-based, not SQL-aware.
var integerLiteral = regexp.MustCompile(`\b\d+\b`)

// Normalize canonicalizes a SQL statement by replacing integer literals
// with a ? placeholder. Statements that differ only in an integer literal,
// typically a primary key in a one-row-at-a-time follow-up query, normalize
// to the same signature and are grouped as duplicates. Normalize is pure,
// total and idempotent: the placeholder contains no digits.
func Normalize(sql string) string {
	return integerLiteral.ReplaceAllString(sql, "?")
}
