package graph

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryParams(t *testing.T, rawURL string) url.Values {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Query()
}

func TestQuery_Modifiers(t *testing.T) {
	q := NewQuery().
		Select("id", "displayName").
		Expand("manager").
		Filter("startsWith(displayName,'A')").
		OrderBy("displayName").
		Top(25).
		Skip(50).
		Count(true).
		Search("\"pizza\"")

	params := queryParams(t, q.appendTo("https://example.test/v1.0/users"))
	assert.Equal(t, "id,displayName", params.Get("$select"))
	assert.Equal(t, "manager", params.Get("$expand"))
	assert.Equal(t, "startsWith(displayName,'A')", params.Get("$filter"))
	assert.Equal(t, "displayName", params.Get("$orderby"))
	assert.Equal(t, "25", params.Get("$top"))
	assert.Equal(t, "50", params.Get("$skip"))
	assert.Equal(t, "true", params.Get("$count"))
	assert.Equal(t, "\"pizza\"", params.Get("$search"))
}

func TestQuery_ModifiersAppend(t *testing.T) {
	q := NewQuery().
		Select("id").
		Select("displayName").
		Filter("a eq 1").
		Filter("b eq 2")

	params := queryParams(t, q.appendTo("https://example.test/v1.0/users"))
	assert.Equal(t, "id,displayName", params.Get("$select"))
	assert.Equal(t, "a eq 1 and b eq 2", params.Get("$filter"))
}

func TestQuery_AppendTo_PreservesExistingParams(t *testing.T) {
	q := NewQuery().Top(10)

	params := queryParams(t, q.appendTo("https://example.test/v1.0/users?$skiptoken=abc"))
	assert.Equal(t, "abc", params.Get("$skiptoken"))
	assert.Equal(t, "10", params.Get("$top"))
}

func TestQuery_AppendTo_NilAndEmpty(t *testing.T) {
	var q *Query
	assert.Equal(t, "https://example.test/v1.0/me", q.appendTo("https://example.test/v1.0/me"))
	assert.Equal(t, "https://example.test/v1.0/me", NewQuery().appendTo("https://example.test/v1.0/me"))
}
