package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// predicateKeys are the parse-tree fields whose subtrees filter or join rows.
var predicateKeys = map[string]bool{
	"whereClause":  true,
	"quals":        true,
	"havingClause": true,
}

// PredicateColumns parses SQL text and returns the lowercased names of every
// column referenced beneath a WHERE, JOIN ... ON or HAVING clause, one entry
// per reference.
func PredicateColumns(sql string) ([]string, error) {
	out, err := pg_query.ParseToJSON(sql)
	if err != nil {
		return nil, fmt.Errorf("parsing sql: %w", err)
	}
	var tree any
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		return nil, fmt.Errorf("decoding parse tree: %w", err)
	}
	var cols []string
	collectPredicateRefs(tree, false, &cols)
	return cols, nil
}

func collectPredicateRefs(node any, inPredicate bool, cols *[]string) {
	switch n := node.(type) {
	case map[string]any:
		if inPredicate {
			if ref, ok := n["ColumnRef"].(map[string]any); ok {
				if name := columnRefName(ref); name != "" {
					*cols = append(*cols, name)
				}
				return
			}
		}
		for k, v := range n {
			collectPredicateRefs(v, inPredicate || predicateKeys[k], cols)
		}
	case []any:
		for _, v := range n {
			collectPredicateRefs(v, inPredicate, cols)
		}
	}
}

// columnRefName extracts the bare column from the last field of a ColumnRef.
// For t.col the fields are [String{t}, String{col}].
func columnRefName(ref map[string]any) string {
	fields, ok := ref["fields"].([]any)
	if !ok || len(fields) == 0 {
		return ""
	}
	last, ok := fields[len(fields)-1].(map[string]any)
	if !ok {
		return ""
	}
	str, ok := last["String"].(map[string]any)
	if !ok {
		return "" // A_Star
	}
	sval, _ := str["sval"].(string)
	return strings.ToLower(sval)
}

const mentionWindow = 60

var predicateKeyword = regexp.MustCompile(`(?i)\b(WHERE|AND|OR|ON|JOIN|BETWEEN|IN|HAVING)\b`)

// TextualPredicateMentions counts whole-word occurrences of column that have a
// filtering or joining keyword within the preceding 60 characters. It is the
// fallback for text the SQL parser rejects, such as procedural bodies.
func TextualPredicateMentions(text, column string) int {
	if column == "" {
		return 0
	}
	word := regexp.MustCompile(`(?i)(^|[^A-Za-z0-9_$#])` + regexp.QuoteMeta(column) + `($|[^A-Za-z0-9_$#])`)
	n := 0
	for _, loc := range word.FindAllStringIndex(text, -1) {
		start := loc[0]
		window := text[max(0, start-mentionWindow) : start+1]
		if predicateKeyword.MatchString(window) {
			n++
		}
	}
	return n
}

// PredicateMentions counts the predicate-position references to column in an
// object's source text, parsing it when possible.
func PredicateMentions(text, column string) int {
	cols, err := PredicateColumns(text)
	if err != nil {
		return TextualPredicateMentions(text, column)
	}
	n := 0
	for _, c := range cols {
		if strings.EqualFold(c, column) {
			n++
		}
	}
	return n
}

// UsageScore weighs how much indexes, views and routines rely on a column.
func UsageScore(column string, indexes []IndexInfo, refs []ObjectReference, w UsageWeights) int {
	score := 0
	for _, idx := range indexes {
		for i, c := range idx.Columns {
			if !strings.EqualFold(c, column) {
				continue
			}
			if i == 0 {
				score += w.LeadingIndex
			} else {
				score += w.Index
			}
			break
		}
	}
	for _, ref := range refs {
		mentions := PredicateMentions(ref.Text, column)
		switch ref.Type {
		case ObjectView:
			score += mentions * w.View
		case ObjectRoutine:
			score += mentions * w.Routine
		}
	}
	return score
}
