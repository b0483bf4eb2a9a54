package paging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/graphkit/auth"
	"github.com/custodia-labs/graphkit/graph"
)

// pagedServer serves a fixed sequence of collection pages, linking each to
// the next.
func pagedServer(t *testing.T, pages []map[string]any) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := 0
		if s := r.URL.Query().Get("page"); s != "" {
			_, err := fmt.Sscanf(s, "%d", &idx)
			require.NoError(t, err)
		}
		require.Less(t, idx, len(pages))

		page := make(map[string]any, len(pages[idx])+1)
		for k, v := range pages[idx] {
			page[k] = v
		}
		if idx+1 < len(pages) {
			page["@odata.nextLink"] = fmt.Sprintf("%s/v1.0/users?page=%d", srv.URL, idx+1)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func pagingClient(t *testing.T, srv *httptest.Server) *graph.Client {
	t.Helper()
	cred, err := auth.NewStaticTokenCredential("test-token")
	require.NoError(t, err)
	client, err := graph.NewClient(cred, graph.WithEndpoint(srv.URL), graph.WithInsecureAllowHTTP())
	require.NoError(t, err)
	return client
}

func names(t *testing.T, values []json.RawMessage) []string {
	t.Helper()
	out := make([]string, 0, len(values))
	for _, v := range values {
		var item struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.Unmarshal(v, &item))
		out = append(out, item.Name)
	}
	return out
}

func TestPager_WalksAllPages(t *testing.T) {
	srv := pagedServer(t, []map[string]any{
		{"value": []map[string]string{{"name": "u1"}, {"name": "u2"}}},
		{"value": []map[string]string{{"name": "u3"}}},
	})
	p, err := New(pagingClient(t, srv), graph.NewResource("users", "/users"), nil)
	require.NoError(t, err)

	require.True(t, p.More())
	first, err := p.NextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, names(t, first.Values))
	assert.NotEmpty(t, first.NextLink)
	require.True(t, p.More())

	second, err := p.NextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, names(t, second.Values))
	assert.Empty(t, second.NextLink)

	assert.False(t, p.More())
	assert.Equal(t, 2, p.PageCount())

	_, err = p.NextPage(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestPager_SinglePage(t *testing.T) {
	srv := pagedServer(t, []map[string]any{
		{"value": []map[string]string{{"name": "only"}}},
	})
	p, err := New(pagingClient(t, srv), graph.NewResource("users", "/users"), nil)
	require.NoError(t, err)

	page, err := p.NextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, names(t, page.Values))
	assert.False(t, p.More())
}

func TestPager_EmptyCollection(t *testing.T) {
	srv := pagedServer(t, []map[string]any{
		{"value": []map[string]string{}},
	})
	p, err := New(pagingClient(t, srv), graph.NewResource("users", "/users"), nil)
	require.NoError(t, err)

	page, err := p.NextPage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page.Values)
	assert.False(t, p.More())
	assert.Equal(t, 1, p.PageCount())
}

func TestPager_DeltaLinkOnTerminalPage(t *testing.T) {
	srv := pagedServer(t, []map[string]any{
		{"value": []map[string]string{{"name": "a"}}},
		{
			"value":            []map[string]string{{"name": "b"}},
			"@odata.deltaLink": "https://graph.microsoft.com/v1.0/me/drive/root/delta?token=abc",
		},
	})
	p, err := New(pagingClient(t, srv), graph.NewResource("delta", "/me/drive/root/delta"), nil)
	require.NoError(t, err)

	// Not exposed until the traversal completes.
	_, err = p.NextPage(context.Background())
	require.NoError(t, err)
	assert.Empty(t, p.DeltaLink())

	last, err := p.NextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://graph.microsoft.com/v1.0/me/drive/root/delta?token=abc", last.DeltaLink)
	assert.Equal(t, "https://graph.microsoft.com/v1.0/me/drive/root/delta?token=abc", p.DeltaLink())
}

func TestPager_All(t *testing.T) {
	srv := pagedServer(t, []map[string]any{
		{"value": []map[string]string{{"name": "u1"}}},
		{"value": []map[string]string{{"name": "u2"}}},
		{"value": []map[string]string{{"name": "u3"}}},
	})
	p, err := New(pagingClient(t, srv), graph.NewResource("users", "/users"), nil)
	require.NoError(t, err)

	pages, err := p.All(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, []string{"u3"}, names(t, pages[2].Values))
}

func TestPager_Channel(t *testing.T) {
	srv := pagedServer(t, []map[string]any{
		{"value": []map[string]string{{"name": "u1"}}},
		{"value": []map[string]string{{"name": "u2"}}},
	})
	p, err := New(pagingClient(t, srv), graph.NewResource("users", "/users"), nil)
	require.NoError(t, err)

	var got []string
	for res := range p.Channel(context.Background()) {
		require.NoError(t, res.Err)
		got = append(got, names(t, res.Page.Values)...)
	}
	assert.Equal(t, []string{"u1", "u2"}, got)
}

func TestPager_FailureIsSticky(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"itemNotFound","message":"gone"}}`))
	}))
	defer srv.Close()

	p, err := New(pagingClient(t, srv), graph.NewResource("users", "/users"), nil)
	require.NoError(t, err)

	_, err = p.NextPage(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, calls)

	// The failure is terminal: no further requests are issued.
	_, again := p.NextPage(context.Background())
	assert.Equal(t, err, again)
	assert.Equal(t, 1, calls)
	assert.False(t, p.More())
}

func TestPager_NonArrayValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"value":"not-an-array"}`))
	}))
	defer srv.Close()

	p, err := New(pagingClient(t, srv), graph.NewResource("users", "/users"), nil)
	require.NoError(t, err)

	_, err = p.NextPage(context.Background())
	assert.ErrorIs(t, err, graph.ErrEncoding)
}

func TestPager_QueryAppliesToFirstRequestOnly(t *testing.T) {
	var firstQuery, lastQuery string
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "" {
			firstQuery = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"value":[],"@odata.nextLink":"%s/v1.0/users?page=2"}`, srv.URL)
			return
		}
		lastQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"value":[]}`))
	}))
	defer srv.Close()

	p, err := New(pagingClient(t, srv), graph.NewResource("users", "/users"), graph.NewQuery().Top(2))
	require.NoError(t, err)

	_, err = p.All(context.Background())
	require.NoError(t, err)

	assert.Contains(t, firstQuery, "top=2")
	// Follow-up requests use the server-minted link verbatim.
	assert.Equal(t, "page=2", lastQuery)
}

func TestNewFromURL_ResumesDelta(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		_, _ = w.Write([]byte(`{"value":[],"@odata.deltaLink":"next-delta"}`))
	}))
	defer srv.Close()

	p := NewFromURL(pagingClient(t, srv), srv.URL+"/v1.0/me/drive/root/delta?token=prev")
	_, err := p.NextPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/v1.0/me/drive/root/delta?token=prev", gotPath)
	assert.Equal(t, "next-delta", p.DeltaLink())
}
