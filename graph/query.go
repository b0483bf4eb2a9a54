package graph

import (
	"net/url"
	"strconv"
	"strings"
)

// Query accumulates OData query parameters. List-valued modifiers (Select,
// Expand, Filter, OrderBy) append to what is already present; scalar
// modifiers (Top, Skip, Count, Search, Format) set the latest value. When
// applied to a URL, parameters already on the URL are kept.
type Query struct {
	values url.Values
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{values: url.Values{}}
}

// appendList comma-joins onto an existing list-valued parameter.
func (q *Query) appendList(key string, items []string) *Query {
	if len(items) == 0 {
		return q
	}
	joined := strings.Join(items, ",")
	if existing := q.values.Get(key); existing != "" {
		joined = existing + "," + joined
	}
	q.values.Set(key, joined)
	return q
}

// Select appends properties to $select.
func (q *Query) Select(properties ...string) *Query {
	return q.appendList("$select", properties)
}

// Expand appends relationships to $expand.
func (q *Query) Expand(relationships ...string) *Query {
	return q.appendList("$expand", relationships)
}

// Filter appends a $filter expression; multiple calls are joined with
// " and ".
func (q *Query) Filter(expression string) *Query {
	if existing := q.values.Get("$filter"); existing != "" {
		expression = existing + " and " + expression
	}
	q.values.Set("$filter", expression)
	return q
}

// OrderBy appends properties to $orderby.
func (q *Query) OrderBy(properties ...string) *Query {
	return q.appendList("$orderby", properties)
}

// Top sets $top.
func (q *Query) Top(n int) *Query {
	q.values.Set("$top", strconv.Itoa(n))
	return q
}

// Skip sets $skip.
func (q *Query) Skip(n int) *Query {
	q.values.Set("$skip", strconv.Itoa(n))
	return q
}

// Count sets $count.
func (q *Query) Count(include bool) *Query {
	q.values.Set("$count", strconv.FormatBool(include))
	return q
}

// Search sets $search.
func (q *Query) Search(term string) *Query {
	q.values.Set("$search", term)
	return q
}

// Format sets $format.
func (q *Query) Format(format string) *Query {
	q.values.Set("$format", format)
	return q
}

// Raw appends an arbitrary query parameter.
func (q *Query) Raw(key, value string) *Query {
	q.values.Add(key, value)
	return q
}

// appendTo merges the accumulated parameters into rawURL, preserving any
// parameters the URL already carries.
func (q *Query) appendTo(rawURL string) string {
	if q == nil || len(q.values) == 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	existing := u.Query()
	for k, vals := range q.values {
		for _, v := range vals {
			existing.Add(k, v)
		}
	}
	u.RawQuery = existing.Encode()
	return u.String()
}
