package catalog

import (
	"fmt"
	"strings"
)

// Query selects documents from the index.
type Query interface {
	eval(schema Schema, ix *index) (map[string]struct{}, error)
	String() string
}

type allQuery struct{}

// All matches every document.
func All() Query { return allQuery{} }

func (allQuery) eval(_ Schema, ix *index) (map[string]struct{}, error) {
	return ix.all(), nil
}

func (allQuery) String() string { return "*" }

type equalQuery struct {
	field string
	value any
}

// Equal matches documents where field has value. On text fields it behaves as Phrase.
func Equal(field string, value any) Query {
	return equalQuery{field: field, value: value}
}

func (q equalQuery) eval(schema Schema, ix *index) (map[string]struct{}, error) {
	field := schema.Field(q.field)
	if field.Type == Text {
		return phraseQuery{field: q.field, text: fmt.Sprint(q.value)}.eval(schema, ix)
	}

	term, err := queryTerm(field, q.value)
	if err != nil {
		return nil, fmt.Errorf("query on '%s': %w", q.field, err)
	}
	return ix.lookup(q.field, term), nil
}

func (q equalQuery) String() string { return fmt.Sprintf("%s:%v", q.field, q.value) }

// In matches documents where field has any of the values.
func In(field string, values ...string) Query {
	queries := make([]Query, len(values))
	for i, v := range values {
		queries[i] = Equal(field, v)
	}
	return Or(queries...)
}

type phraseQuery struct {
	field string
	text  string
}

// Phrase matches documents whose text field contains the words of text in order.
func Phrase(field, text string) Query {
	return phraseQuery{field: field, text: text}
}

func (q phraseQuery) eval(schema Schema, ix *index) (map[string]struct{}, error) {
	field := schema.Field(q.field)
	if field.Type != Text {
		return equalQuery{field: q.field, value: q.text}.eval(schema, ix)
	}

	words := tokenize(q.text)
	if len(words) == 0 {
		return map[string]struct{}{}, nil
	}

	candidates := ix.lookup(q.field, words[0])
	for _, word := range words[1:] {
		candidates = intersect(candidates, ix.lookup(q.field, word))
	}

	result := make(map[string]struct{})
	for path := range candidates {
		for _, tokens := range ix.docs[path].tokens[q.field] {
			if containsSequence(tokens, words) {
				result[path] = struct{}{}
				break
			}
		}
	}
	return result, nil
}

func (q phraseQuery) String() string { return fmt.Sprintf("%s:%q", q.field, q.text) }

type rangeQuery struct {
	field  string
	lo, hi any
}

// Range matches documents where field lies within [lo, hi]. A nil bound is open.
func Range(field string, lo, hi any) Query {
	return rangeQuery{field: field, lo: lo, hi: hi}
}

func (q rangeQuery) eval(schema Schema, ix *index) (map[string]struct{}, error) {
	field := schema.Field(q.field)

	var lo, hi string
	if q.lo != nil {
		term, err := queryTerm(field, q.lo)
		if err != nil {
			return nil, fmt.Errorf("range on '%s': %w", q.field, err)
		}
		lo = term
	}
	if q.hi != nil {
		term, err := queryTerm(field, q.hi)
		if err != nil {
			return nil, fmt.Errorf("range on '%s': %w", q.field, err)
		}
		hi = term
	}

	return ix.scan(q.field, lo, q.lo != nil, hi, q.hi != nil, nil), nil
}

func (q rangeQuery) String() string {
	bound := func(v any) string {
		if v == nil {
			return "*"
		}
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("%s:[%s TO %s]", q.field, bound(q.lo), bound(q.hi))
}

type prefixQuery struct {
	field  string
	prefix string
}

// StartsWith matches documents with a keyword term beginning with prefix.
func StartsWith(field, prefix string) Query {
	return prefixQuery{field: field, prefix: prefix}
}

func (q prefixQuery) eval(_ Schema, ix *index) (map[string]struct{}, error) {
	return ix.scan(q.field, q.prefix, true, "", false, func(term string) bool {
		return strings.HasPrefix(term, q.prefix)
	}), nil
}

func (q prefixQuery) String() string { return fmt.Sprintf("%s:%s*", q.field, q.prefix) }

type andQuery []Query

// And matches documents matched by every query. And() matches everything.
func And(queries ...Query) Query { return andQuery(queries) }

func (q andQuery) eval(schema Schema, ix *index) (map[string]struct{}, error) {
	if len(q) == 0 {
		return ix.all(), nil
	}

	result, err := q[0].eval(schema, ix)
	if err != nil {
		return nil, err
	}
	for _, sub := range q[1:] {
		if len(result) == 0 {
			break
		}
		paths, err := sub.eval(schema, ix)
		if err != nil {
			return nil, err
		}
		result = intersect(result, paths)
	}
	return result, nil
}

func (q andQuery) String() string { return joinQueries(q, " AND ") }

type orQuery []Query

// Or matches documents matched by any query. Or() matches nothing.
func Or(queries ...Query) Query { return orQuery(queries) }

func (q orQuery) eval(schema Schema, ix *index) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	for _, sub := range q {
		paths, err := sub.eval(schema, ix)
		if err != nil {
			return nil, err
		}
		for path := range paths {
			result[path] = struct{}{}
		}
	}
	return result, nil
}

func (q orQuery) String() string { return joinQueries(q, " OR ") }

type notQuery struct {
	query Query
}

// Not matches every document the query does not match.
func Not(query Query) Query { return notQuery{query: query} }

func (q notQuery) eval(schema Schema, ix *index) (map[string]struct{}, error) {
	excluded, err := q.query.eval(schema, ix)
	if err != nil {
		return nil, err
	}

	result := ix.all()
	for path := range excluded {
		delete(result, path)
	}
	return result, nil
}

func (q notQuery) String() string { return "NOT " + q.query.String() }

func joinQueries(queries []Query, sep string) string {
	parts := make([]string, len(queries))
	for i, q := range queries {
		parts[i] = q.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}

	result := make(map[string]struct{}, len(a))
	for path := range a {
		if _, ok := b[path]; ok {
			result[path] = struct{}{}
		}
	}
	return result
}

func containsSequence(tokens, words []string) bool {
	for i := 0; i+len(words) <= len(tokens); i++ {
		match := true
		for j, w := range words {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
