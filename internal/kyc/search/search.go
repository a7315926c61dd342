// Package search turns free text into a structured case filter. Unquoted
// input becomes case-insensitive prefix matches OR-ed across the person
// fields; quoted input additionally expands into every contiguous
// (first, middle, last) partition of its words, each an exact-match AND
// clause, so a stored name split differently from the typed one still hits.
package search

import (
	"strconv"
	"strings"

	"kyc-core/internal/kyc/models"
)

// Searchable record fields.
const (
	FieldUsername      = "core_username"
	FieldEmail         = "core_email"
	FieldCorporateName = "full_corporate_name"
	FieldFirstName     = "first_name"
	FieldMiddleName    = "middle_name"
	FieldLastName      = "last_name"
	FieldUID           = "uid"
)

// Cond is one field condition. Exact conditions compare the whole value;
// prefix conditions compare case-insensitively against the value's start.
type Cond struct {
	Field string
	Value string
	UID   int64
	Exact bool
}

// Clause is a conjunction of conditions.
type Clause []Cond

// Query is a disjunction of clauses.
type Query struct {
	Clauses []Clause
}

// Parse builds a query from raw input. Empty or whitespace-only input yields
// nil. Input wrapped in double quotes takes the exact name-partition path.
func Parse(input string) *Query {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	if quoted(trimmed) {
		return &Query{Clauses: quotedClauses(trimmed)}
	}
	return &Query{Clauses: prefixClauses(trimmed)}
}

func quoted(s string) bool {
	return len(s) > 3 && s[0] == '"' && s[len(s)-1] == '"'
}

func prefixClauses(input string) []Clause {
	var clauses []Clause
	for _, token := range strings.Fields(input) {
		for _, field := range []string{
			FieldUsername,
			FieldEmail,
			FieldMiddleName,
			FieldFirstName,
			FieldLastName,
			FieldCorporateName,
		} {
			clauses = append(clauses, Clause{{Field: field, Value: token}})
		}
		if uid, err := strconv.ParseInt(token, 10, 64); err == nil {
			clauses = append(clauses, Clause{{Field: FieldUID, UID: uid, Exact: true}})
		}
	}
	return clauses
}

func quotedClauses(input string) []Clause {
	s := strings.TrimSpace(strings.ReplaceAll(input, `"`, ""))
	clauses := nameClauses(strings.Fields(s))

	clauses = append(clauses,
		Clause{{Field: FieldUsername, Value: s, Exact: true}},
		Clause{{Field: FieldEmail, Value: s, Exact: true}},
		Clause{{Field: FieldCorporateName, Value: s, Exact: true}},
	)
	if uid, err := strconv.ParseInt(s, 10, 64); err == nil {
		clauses = append(clauses, Clause{{Field: FieldUID, UID: uid, Exact: true}})
	}
	return clauses
}

// nameClauses enumerates every contiguous partition of the tokens into a
// (first, middle, last) triple, in original order, any group possibly empty.
// The generator is iterative over the two split points so no partition is
// dropped and no recursion state leaks into the result order.
func nameClauses(tokens []string) []Clause {
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var clauses []Clause
	for i := 0; i <= len(tokens); i++ {
		for j := i; j <= len(tokens); j++ {
			clause := nameClause(tokens[:i], tokens[i:j], tokens[j:])
			if len(clause) == 0 {
				continue
			}
			key := clauseKey(clause)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			clauses = append(clauses, clause)
		}
	}
	return clauses
}

func nameClause(first, middle, last []string) Clause {
	var clause Clause
	if len(first) > 0 {
		clause = append(clause, Cond{Field: FieldFirstName, Value: strings.Join(first, " "), Exact: true})
	}
	if len(middle) > 0 {
		clause = append(clause, Cond{Field: FieldMiddleName, Value: strings.Join(middle, " "), Exact: true})
	}
	if len(last) > 0 {
		clause = append(clause, Cond{Field: FieldLastName, Value: strings.Join(last, " "), Exact: true})
	}
	return clause
}

func clauseKey(clause Clause) string {
	var b strings.Builder
	for _, c := range clause {
		b.WriteString(c.Field)
		b.WriteByte('=')
		b.WriteString(c.Value)
		b.WriteByte(';')
	}
	return b.String()
}

// Match evaluates the query against one case record. A nil query matches
// everything.
func (q *Query) Match(rec *models.Record) bool {
	if q == nil || len(q.Clauses) == 0 {
		return true
	}
	for _, clause := range q.Clauses {
		if clauseMatches(clause, rec) {
			return true
		}
	}
	return false
}

func clauseMatches(clause Clause, rec *models.Record) bool {
	for _, cond := range clause {
		if !condMatches(cond, rec) {
			return false
		}
	}
	return len(clause) > 0
}

func condMatches(cond Cond, rec *models.Record) bool {
	if cond.Field == FieldUID {
		return rec.UID == cond.UID
	}
	value, ok := fieldValue(rec, cond.Field)
	if !ok {
		return false
	}
	if cond.Exact {
		return value == cond.Value
	}
	return strings.HasPrefix(strings.ToLower(value), strings.ToLower(cond.Value))
}

func fieldValue(rec *models.Record, field string) (string, bool) {
	switch field {
	case FieldUsername:
		return rec.CoreUsername, rec.CoreUsername != ""
	case FieldEmail:
		return rec.CoreEmail, rec.CoreEmail != ""
	default:
		v, ok := rec.Fields[field]
		return v, ok
	}
}
