package storage

import (
	"strconv"
	"strings"
)

// SearchByPredicate evaluates a trivial "col op value" predicate against
// every user row carrying the named column and returns the matches, keyed
// by row id and projected onto the table's current columns. A malformed
// predicate (wrong token count, or an unsupported operator) returns an
// empty result, not an error, matching the documented behavior of this
// operation.
func (t *Table) SearchByPredicate(expr string) map[string]Row {
	out := make(map[string]Row)

	col, op, val, ok := parsePredicate(expr)
	if !ok {
		return out
	}

	for _, id := range t.SortedRowIDs() {
		rowVal, present := t.Rows[id][col]
		if !present {
			continue // rows without the column are never candidates
		}
		if !comparePredicate(rowVal, op, val) {
			continue
		}
		projected, err := t.GetRow(id)
		if err != nil {
			continue
		}
		out[id] = projected
	}
	return out
}

// parsePredicate splits expr into exactly three whitespace-separated
// tokens: column, operator, value. Any other token count, or an operator
// outside the supported set, is reported as not ok.
func parsePredicate(expr string) (col, op, val string, ok bool) {
	fields := strings.Fields(expr)
	if len(fields) != 3 {
		return "", "", "", false
	}
	switch fields[1] {
	case "==", "<", "<=", ">", ">=":
	default:
		return "", "", "", false
	}
	return fields[0], fields[1], fields[2], true
}

// comparePredicate applies op to lhs and rhs. If both parse as a 64-bit
// float, the comparison is numeric; otherwise it falls back to
// lexicographic string comparison, including for values that only partially
// resemble numbers (e.g. "x" compares lexicographically against "30").
func comparePredicate(lhs, op, rhs string) bool {
	lf, lerr := strconv.ParseFloat(lhs, 64)
	rf, rerr := strconv.ParseFloat(rhs, 64)
	if lerr == nil && rerr == nil {
		switch op {
		case "==":
			return lf == rf
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		}
	}
	switch op {
	case "==":
		return lhs == rhs
	case "<":
		return lhs < rhs
	case "<=":
		return lhs <= rhs
	case ">":
		return lhs > rhs
	case ">=":
		return lhs >= rhs
	}
	return false
}
