package retriever

import (
	"fmt"
	"reflect"
	"strings"

	"zotindex/internal/domain"
)

// Filter is a compiled metadata and document predicate. A nil *Filter
// matches every document.
type Filter struct {
	where predicate
	doc   predicate
}

type predicate func(doc domain.IndexedDocument) bool

// Compile validates where and whereDoc and returns their conjunction.
// Errors wrap domain.ErrInvalidFilter.
//
// Metadata clauses: {"field": v} is shorthand for {"field": {"$eq": v}};
// operators are $eq $ne $gt $gte $lt $lte $in $nin; clauses combine with
// $and / $or, and several top-level keys are ANDed. Document clauses are
// $contains, $not_contains, $and, $or. A document lacking a field never
// matches a clause on that field.
func Compile(where domain.Where, whereDoc domain.WhereDocument) (*Filter, error) {
	f := &Filter{}
	if len(where) > 0 {
		p, err := compileWhere(where)
		if err != nil {
			return nil, err
		}
		f.where = p
	}
	if len(whereDoc) > 0 {
		p, err := compileDocument(whereDoc)
		if err != nil {
			return nil, err
		}
		f.doc = p
	}
	return f, nil
}

// Match reports whether doc satisfies the filter.
func (f *Filter) Match(doc domain.IndexedDocument) bool {
	if f == nil {
		return true
	}
	if f.where != nil && !f.where(doc) {
		return false
	}
	if f.doc != nil && !f.doc(doc) {
		return false
	}
	return true
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidFilter, fmt.Sprintf(format, args...))
}

func compileWhere(clause map[string]any) (predicate, error) {
	if len(clause) == 0 {
		return nil, invalid("empty where clause")
	}
	preds := make([]predicate, 0, len(clause))
	for key, val := range clause {
		var (
			p   predicate
			err error
		)
		switch key {
		case "$and", "$or":
			p, err = compileLogical(key, val, compileWhere)
		default:
			if strings.HasPrefix(key, "$") {
				return nil, invalid("unknown operator %s at top level", key)
			}
			p, err = compileField(key, val)
		}
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return all(preds), nil
}

func compileDocument(clause map[string]any) (predicate, error) {
	if len(clause) != 1 {
		return nil, invalid("where_document needs exactly one operator, got %d", len(clause))
	}
	for key, val := range clause {
		switch key {
		case "$contains", "$not_contains":
			needle, ok := val.(string)
			if !ok || needle == "" {
				return nil, invalid("%s needs a non-empty string", key)
			}
			want := key == "$contains"
			return func(doc domain.IndexedDocument) bool {
				return strings.Contains(doc.Text, needle) == want
			}, nil
		case "$and", "$or":
			return compileLogical(key, val, compileDocument)
		default:
			return nil, invalid("unknown where_document operator %s", key)
		}
	}
	return nil, nil
}

func compileLogical(op string, val any, compile func(map[string]any) (predicate, error)) (predicate, error) {
	items, ok := asList(val)
	if !ok || len(items) == 0 {
		return nil, invalid("%s needs a non-empty list", op)
	}
	preds := make([]predicate, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, invalid("%s entries must be objects", op)
		}
		p, err := compile(m)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if op == "$and" {
		return all(preds), nil
	}
	return func(doc domain.IndexedDocument) bool {
		for _, p := range preds {
			if p(doc) {
				return true
			}
		}
		return false
	}, nil
}

func all(preds []predicate) predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return func(doc domain.IndexedDocument) bool {
		for _, p := range preds {
			if !p(doc) {
				return false
			}
		}
		return true
	}
}

func compileField(field string, val any) (predicate, error) {
	ops, isMap := asMap(val)
	if !isMap {
		ops = map[string]any{"$eq": val}
	}
	if len(ops) != 1 {
		return nil, invalid("field %q needs exactly one operator", field)
	}

	for op, operand := range ops {
		switch op {
		case "$eq", "$ne":
			want, ok := normalize(operand)
			if !ok {
				return nil, invalid("%s on %q needs a scalar", op, field)
			}
			eq := op == "$eq"
			return fieldPredicate(field, func(got any) bool {
				return (got == want) == eq
			}), nil

		case "$gt", "$gte", "$lt", "$lte":
			n, ok := normalize(operand)
			bound, isNum := n.(float64)
			if !ok || !isNum {
				return nil, invalid("%s on %q needs a number", op, field)
			}
			cmp := comparators[op]
			return fieldPredicate(field, func(got any) bool {
				v, isNum := got.(float64)
				return isNum && cmp(v, bound)
			}), nil

		case "$in", "$nin":
			items, ok := asList(operand)
			if !ok || len(items) == 0 {
				return nil, invalid("%s on %q needs a non-empty list", op, field)
			}
			set := make(map[any]struct{}, len(items))
			for _, item := range items {
				v, ok := normalize(item)
				if !ok {
					return nil, invalid("%s on %q needs scalar entries", op, field)
				}
				set[v] = struct{}{}
			}
			in := op == "$in"
			return fieldPredicate(field, func(got any) bool {
				_, found := set[got]
				return found == in
			}), nil

		default:
			return nil, invalid("unknown operator %s on %q", op, field)
		}
	}
	return nil, nil
}

var comparators = map[string]func(a, b float64) bool{
	"$gt":  func(a, b float64) bool { return a > b },
	"$gte": func(a, b float64) bool { return a >= b },
	"$lt":  func(a, b float64) bool { return a < b },
	"$lte": func(a, b float64) bool { return a <= b },
}

func fieldPredicate(field string, test func(got any) bool) predicate {
	return func(doc domain.IndexedDocument) bool {
		raw, ok := doc.Metadata[field]
		if !ok {
			return false
		}
		got, ok := normalize(raw)
		return ok && test(got)
	}
}

// normalize maps every numeric kind to float64 so values read back from
// JSON compare equal to values written from Go.
func normalize(v any) (any, bool) {
	switch x := v.(type) {
	case string, bool:
		return x, true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return nil, false
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case domain.Where:
		return m, true
	case domain.WhereDocument:
		return m, true
	default:
		return nil, false
	}
}

func asList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
