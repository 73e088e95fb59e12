package db

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidFilter wraps query-string filter values that cannot be parsed.
var ErrInvalidFilter = errors.New("invalid filter")

// FilterKind selects how a query-string filter is turned into SQL.
type FilterKind int

const (
	FilterExact    FilterKind = iota // column = value
	FilterContains                   // column ILIKE %value%
	FilterFrom                       // column >= value (RFC 3339 or YYYY-MM-DD)
	FilterTo                         // column <= value (RFC 3339 or YYYY-MM-DD, inclusive of that day)
	FilterBool                       // column = true/false
	FilterUUID                       // column = value, value parsed as a UUID
)

// Filter maps a query-string parameter to a column.
type Filter struct {
	Kind   FilterKind
	Column string
}

// Query builds a filtered, paginated SELECT with positional arguments.
// Column and table names come from code, never from the request.
type Query struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	orderBy string
}

func NewQuery(table, cols string) *Query {
	return &Query{table: table, cols: cols}
}

// next returns the placeholder for the next argument.
func (q *Query) next() string {
	return "$" + strconv.Itoa(len(q.args)+1)
}

// Where appends a clause. Each "?" in clause is replaced by the placeholder
// of the matching argument.
func (q *Query) Where(clause string, args ...interface{}) *Query {
	for _, a := range args {
		clause = strings.Replace(clause, "?", q.next(), 1)
		q.args = append(q.args, a)
	}
	q.where += " AND " + clause
	return q
}

// Apply adds one clause per parameter that has a filter. Parameters are
// applied in name order so the generated SQL is stable. Values that do not
// parse for their kind return an error naming the parameter.
func (q *Query) Apply(params map[string]string, filters map[string]Filter) error {
	names := make([]string, 0, len(params))
	for name := range params {
		if _, ok := filters[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		f, value := filters[name], strings.TrimSpace(params[name])
		if value == "" {
			continue
		}
		switch f.Kind {
		case FilterExact:
			q.Where(f.Column+" = ?", value)
		case FilterUUID:
			id, err := uuid.Parse(value)
			if err != nil {
				return fmt.Errorf("%w: %s must be a valid UUID", ErrInvalidFilter, name)
			}
			q.Where(f.Column+" = ?", id)
		case FilterContains:
			q.Where(f.Column+" ILIKE ?", "%"+escapeLike(value)+"%")
		case FilterFrom, FilterTo:
			t, dateOnly, err := parseTime(value)
			if err != nil {
				return fmt.Errorf("%w: %s %v", ErrInvalidFilter, name, err)
			}
			if f.Kind == FilterFrom {
				q.Where(f.Column+" >= ?", t)
			} else if dateOnly {
				q.Where(f.Column+" < ?", t.AddDate(0, 0, 1))
			} else {
				q.Where(f.Column+" <= ?", t)
			}
		case FilterBool:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("%w: %s must be true or false", ErrInvalidFilter, name)
			}
			q.Where(f.Column+" = ?", b)
		}
	}
	return nil
}

// OrderBy sets the ORDER BY clause (without the keyword).
func (q *Query) OrderBy(orderBy string) *Query {
	q.orderBy = orderBy
	return q
}

// Sort orders by a comma separated list of allowed keys, "-" meaning
// descending. Unknown keys are ignored; with none left def is used.
func (q *Query) Sort(param, def string, allowed map[string]string) *Query {
	var parts []string
	for _, field := range strings.Split(param, ",") {
		field = strings.TrimSpace(field)
		dir := " ASC"
		if strings.HasPrefix(field, "-") {
			dir = " DESC"
			field = field[1:]
		}
		if col, ok := allowed[field]; ok {
			parts = append(parts, col+dir)
		}
	}
	if len(parts) == 0 {
		q.orderBy = def
	} else {
		q.orderBy = strings.Join(parts, ", ")
	}
	return q
}

func (q *Query) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

func (q *Query) CountArgs() []interface{} {
	return q.args
}

func (q *Query) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	n := len(q.args)
	return sql + fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
}

func (q *Query) DataArgs(limit, offset int) []interface{} {
	out := make([]interface{}, len(q.args), len(q.args)+2)
	copy(out, q.args)
	return append(out, limit, offset)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func parseTime(v string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	if t, err = time.Parse(time.DateOnly, v); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q", v)
}
