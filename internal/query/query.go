// Package query turns list-endpoint query strings into filtered, sorted,
// searched and paginated GORM reads.
//
// Recognized keys are page, limit, sort, fields and search. Every other key is
// a filter written as field=value or field[op]=value with op one of gt, gte,
// lt, lte or in. Filters on keys the Schema does not expose still echo in the
// meta as literal equality but match no rows, so a query string can never
// widen the owner scope already present on the base query.
package query

import (
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "spendlens/internal/errors"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Kind determines how filter values are parsed before reaching SQL.
type Kind int

const (
	String Kind = iota
	Number
	Time
	Bool
)

// Field maps a public field name to its column.
type Field struct {
	Column string
	Kind   Kind
}

// Schema is the explicit vocabulary of one list endpoint. Field names must
// match the record's JSON keys so projection can select them.
type Schema struct {
	Fields      map[string]Field
	Search      []string // field names matched by ?search
	DefaultSort string   // e.g. "-created_at"
	IDColumn    string   // pagination tiebreaker
	Preloads    []string // applied to the page read only
}

var reserved = map[string]bool{
	"page":   true,
	"limit":  true,
	"sort":   true,
	"fields": true,
	"search": true,
}

var operators = map[string]string{
	"eq":  "=",
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
	"in":  "IN",
}

var filterKey = regexp.MustCompile(`^([A-Za-z0-9_]+)\[([A-Za-z]+)\]$`)

// Filter is one parsed field constraint.
type Filter struct {
	Field string
	Op    string
	Raw   string
	value interface{}
	known bool
}

// Params is a parsed query string.
type Params struct {
	Page    int
	Limit   int
	Sort    []string
	Fields  []string
	Search  string
	Filters []Filter
}

// Skip is the number of rows before the current page.
func (p *Params) Skip() int {
	return (p.Page - 1) * p.Limit
}

// Parse reads values against schema. Malformed paging degrades to defaults;
// unknown operators and unparsable values on known fields are rejected.
func Parse(values url.Values, schema Schema) (*Params, error) {
	p := &Params{
		Page:   positiveInt(values.Get("page"), DefaultPage),
		Limit:  positiveInt(values.Get("limit"), DefaultLimit),
		Search: strings.TrimSpace(values.Get("search")),
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	// Keep Skip within int so a huge page lands past the end, not on page one.
	if maxPage := math.MaxInt / p.Limit; p.Page > maxPage {
		p.Page = maxPage
	}

	for _, token := range splitCSV(values.Get("sort")) {
		if _, ok := schema.Fields[strings.TrimPrefix(token, "-")]; ok {
			p.Sort = append(p.Sort, token)
		}
	}
	for _, name := range splitCSV(values.Get("fields")) {
		if _, ok := schema.Fields[name]; ok {
			p.Fields = append(p.Fields, name)
		}
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		if !reserved[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		f, err := parseFilter(key, values.Get(key), schema)
		if err != nil {
			return nil, err
		}
		p.Filters = append(p.Filters, f)
	}
	return p, nil
}

func parseFilter(key, raw string, schema Schema) (Filter, error) {
	f := Filter{Field: key, Op: "eq", Raw: raw}
	if m := filterKey.FindStringSubmatch(key); m != nil {
		if _, ok := operators[m[2]]; !ok {
			return f, apperrors.WithMessage(apperrors.ErrValidationFailed, "unsupported filter operator: "+m[2])
		}
		f.Field, f.Op = m[1], m[2]
	}

	field, ok := schema.Fields[f.Field]
	if !ok {
		return f, nil
	}
	f.known = true

	if f.Op == "in" {
		parts := splitCSV(raw)
		vals := make([]interface{}, 0, len(parts))
		for _, part := range parts {
			v, err := convert(field.Kind, part)
			if err != nil {
				return f, invalidValue(f.Field, part)
			}
			vals = append(vals, v)
		}
		f.value = vals
		return f, nil
	}

	v, err := convert(field.Kind, raw)
	if err != nil {
		return f, invalidValue(f.Field, raw)
	}
	f.value = v
	return f, nil
}

func invalidValue(field, raw string) error {
	return apperrors.WithMessage(apperrors.ErrValidationFailed, "invalid value "+strconv.Quote(raw)+" for "+field)
}

func convert(kind Kind, raw string) (interface{}, error) {
	switch kind {
	case Number:
		return strconv.ParseFloat(raw, 64)
	case Bool:
		return strconv.ParseBool(raw)
	case Time:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC(), nil
		}
		t, err := time.Parse(time.DateOnly, raw)
		return t.UTC(), err
	}
	return raw, nil
}

// Scope narrows db by the filters and the search term.
func (p *Params) Scope(schema Schema) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, f := range p.Filters {
			if !f.known {
				db = db.Where("1 = 0")
				continue
			}
			col := schema.Fields[f.Field].Column
			if f.Op == "in" {
				db = db.Where(col+" IN ?", f.value)
				continue
			}
			db = db.Where(col+" "+operators[f.Op]+" ?", f.value)
		}

		if p.Search != "" && len(schema.Search) > 0 {
			pattern := "%" + escapeLike(strings.ToLower(p.Search)) + "%"
			group := db.Session(&gorm.Session{NewDB: true})
			for i, name := range schema.Search {
				cond := "LOWER(" + schema.Fields[name].Column + `) LIKE ? ESCAPE '\'`
				if i == 0 {
					group = group.Where(cond, pattern)
				} else {
					group = group.Or(cond, pattern)
				}
			}
			db = db.Where(group)
		}
		return db
	}
}

// Order applies the requested sort, falling back to the schema default, with
// the id column last so pages never overlap.
func (p *Params) Order(schema Schema) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		tokens := p.Sort
		if len(tokens) == 0 && schema.DefaultSort != "" {
			tokens = []string{schema.DefaultSort}
		}
		for _, token := range tokens {
			name := strings.TrimPrefix(token, "-")
			db = db.Order(clause.OrderByColumn{
				Column: clause.Column{Name: schema.Fields[name].Column, Raw: true},
				Desc:   strings.HasPrefix(token, "-"),
			})
		}
		if schema.IDColumn != "" {
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: schema.IDColumn, Raw: true}})
		}
		return db
	}
}

// Paginate applies OFFSET and LIMIT.
func (p *Params) Paginate(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Skip()).Limit(p.Limit)
}

// Meta describes what was applied to a list read.
func (p *Params) Meta(count int64) Meta {
	filters := make(map[string]interface{}, len(p.Filters))
	for _, f := range p.Filters {
		if f.Op == "eq" {
			if nested, ok := filters[f.Field].(map[string]interface{}); ok {
				nested["eq"] = f.Raw
			} else {
				filters[f.Field] = f.Raw
			}
			continue
		}

		var v interface{} = f.Raw
		if f.Op == "in" {
			v = splitCSV(f.Raw)
		}
		nested, ok := filters[f.Field].(map[string]interface{})
		if !ok {
			nested = map[string]interface{}{}
			if eq, isEq := filters[f.Field].(string); isEq {
				nested["eq"] = eq
			}
			filters[f.Field] = nested
		}
		nested[f.Op] = v
	}

	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Skip:       p.Skip(),
		Filters:    filters,
		SortedBy:   strings.Join(p.Sort, ","),
		SelectedBy: strings.Join(p.Fields, ","),
		SearchedBy: p.Search,
		Count:      count,
	}
}

// Find runs the count and the page read for base, which must already carry
// the owner scope and a Model.
func Find[T any](base *gorm.DB, schema Schema, values url.Values) (*Page[T], error) {
	params, err := Parse(values, schema)
	if err != nil {
		return nil, err
	}

	filtered := params.Scope(schema)(base).Session(&gorm.Session{})

	var count int64
	if err := filtered.Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	rows := make([]T, 0, params.Limit)
	read := params.Paginate(params.Order(schema)(filtered))
	for _, rel := range schema.Preloads {
		read = read.Preload(rel)
	}
	if err := read.Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &Page[T]{Data: rows, Meta: params.Meta(count), fields: params.Fields}, nil
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
