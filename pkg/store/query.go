package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Document is a JSON object stored in a collection.
type Document map[string]any

// Query selects documents. The zero Query matches nothing.
type Query struct {
	match func(Document) bool
	desc  string
}

// Match reports whether d satisfies q.
func (q Query) Match(d Document) bool {
	if q.match == nil {
		return false
	}
	return q.match(d)
}

func (q Query) String() string {
	if q.desc == "" {
		return "<none>"
	}
	return q.desc
}

// Any matches every document.
func Any() Query {
	return Query{match: func(Document) bool { return true }, desc: "*"}
}

// And matches documents satisfying both queries.
func (q Query) And(other Query) Query {
	return Query{
		match: func(d Document) bool { return q.Match(d) && other.Match(d) },
		desc:  "(" + q.String() + " AND " + other.String() + ")",
	}
}

// Or matches documents satisfying either query.
func (q Query) Or(other Query) Query {
	return Query{
		match: func(d Document) bool { return q.Match(d) || other.Match(d) },
		desc:  "(" + q.String() + " OR " + other.String() + ")",
	}
}

// Not negates q.
func Not(q Query) Query {
	return Query{
		match: func(d Document) bool { return !q.Match(d) },
		desc:  "NOT " + q.String(),
	}
}

// Field is a (possibly dotted) path into a document.
type Field string

// Where starts a predicate on a field. Nested objects are reached with dots: "creator.username".
func Where(path string) Field {
	return Field(path)
}

func (f Field) Exists() Query {
	return Query{
		match: func(d Document) bool {
			_, ok := f.lookup(d)
			return ok
		},
		desc: string(f) + " exists",
	}
}

func (f Field) Eq(v any) Query {
	return f.cmp("==", v, func(c int) bool { return c == 0 })
}

func (f Field) Ne(v any) Query {
	return Not(f.Eq(v))
}

func (f Field) Lt(v any) Query {
	return f.cmp("<", v, func(c int) bool { return c < 0 })
}

func (f Field) Lte(v any) Query {
	return f.cmp("<=", v, func(c int) bool { return c <= 0 })
}

func (f Field) Gt(v any) Query {
	return f.cmp(">", v, func(c int) bool { return c > 0 })
}

func (f Field) Gte(v any) Query {
	return f.cmp(">=", v, func(c int) bool { return c >= 0 })
}

// FreshSince matches documents whose unix-seconds field is within ttl of now.
func FreshSince(field string, now time.Time, ttl time.Duration) Query {
	return Where(field).Gte(now.Add(-ttl).Unix())
}

func (f Field) cmp(op string, v any, ok func(int) bool) Query {
	want := normalize(v)
	return Query{
		match: func(d Document) bool {
			got, present := f.lookup(d)
			if !present {
				return false
			}
			c, comparable := compare(got, want)
			return comparable && ok(c)
		},
		desc: fmt.Sprintf("%s %s %v", f, op, v),
	}
}

func (f Field) lookup(d Document) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(string(f), ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

// normalize maps Go values onto the types produced by decoding JSON.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return n.String()
		}
		return f
	}
	return v
}

func compare(a, b any) (int, bool) {
	a, b = normalize(a), normalize(b)
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	if reflect.DeepEqual(a, b) {
		return 0, true
	}
	return 0, false
}
