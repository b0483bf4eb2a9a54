// Package paging walks @odata.nextLink-linked collections.
//
// A Pager is a lazy stream: each NextPage call fetches one page through the
// request pipeline. All and Channel are built on top of it for accumulated
// and channel-shaped consumption. The driver never fetches ahead of the
// consumer, and every fetch observes the caller's context.
package paging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/custodia-labs/graphkit/graph"
)

// OData annotation paths consumed by the driver.
const (
	nextLinkPath  = `@odata\.nextLink`
	deltaLinkPath = `@odata\.deltaLink`
)

// ErrExhausted is returned by NextPage after the terminal page has been
// emitted.
var ErrExhausted = errors.New("paging: no more pages")

// Page is one page of a collection response.
type Page struct {
	// Raw is the full response body.
	Raw []byte

	// Values are the elements of the page's "value" array.
	Values []json.RawMessage

	// NextLink is the server-minted URL of the following page, empty on
	// the terminal page.
	NextLink string

	// DeltaLink is only set on the terminal page of a delta query; persist
	// it to request changes later.
	DeltaLink string
}

// state is the driver's position in its lifecycle.
type state int

const (
	stateInitial state = iota
	stateFetching
	stateDone
	stateFailed
)

// Pager drives a multi-page traversal. It is not safe for concurrent use;
// wrap it in Channel for producer/consumer splits.
type Pager struct {
	client *graph.Client
	next   string
	delta  string
	st     state
	err    error
	count  int
}

// New starts a traversal at the rendered resource config URL.
func New(client *graph.Client, rc graph.ResourceConfig, q *graph.Query) (*Pager, error) {
	u, err := client.ResolveURL(rc, q)
	if err != nil {
		return nil, err
	}
	return NewFromURL(client, u), nil
}

// NewFromURL starts a traversal at an absolute URL, typically a persisted
// delta link.
func NewFromURL(client *graph.Client, url string) *Pager {
	return &Pager{client: client, next: url}
}

// More reports whether another page may be available.
func (p *Pager) More() bool {
	return p.st == stateInitial || p.st == stateFetching
}

// PageCount returns the number of pages emitted so far.
func (p *Pager) PageCount() int {
	return p.count
}

// NextPage fetches and returns the next page. After the terminal page it
// returns ErrExhausted; after a failure it keeps returning the same error.
func (p *Pager) NextPage(ctx context.Context) (*Page, error) {
	switch p.st {
	case stateDone:
		return nil, ErrExhausted
	case stateFailed:
		return nil, p.err
	}
	p.st = stateFetching

	resp, err := p.client.Do(ctx, http.MethodGet, p.next, nil, nil)
	if err != nil {
		p.st = stateFailed
		p.err = err
		return nil, err
	}

	page, err := parsePage(resp.Body)
	if err != nil {
		p.st = stateFailed
		p.err = err
		return nil, err
	}

	p.count++
	if page.NextLink == "" {
		p.st = stateDone
		p.delta = page.DeltaLink
	} else {
		p.next = page.NextLink
	}
	return page, nil
}

// DeltaLink returns the delta link from the terminal page, or "".
func (p *Pager) DeltaLink() string {
	if p.st != stateDone {
		return ""
	}
	return p.delta
}

// All walks every remaining page and accumulates them. It stops on the
// first terminal page or the first error, returning the pages fetched so
// far alongside the error.
func (p *Pager) All(ctx context.Context) ([]*Page, error) {
	var pages []*Page
	for p.More() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// Result carries either a page or the error that ended the traversal.
type Result struct {
	Page *Page
	Err  error
}

// Channel spawns the driver on its own goroutine and delivers each page on
// the returned channel, which closes on completion, error, or context
// cancellation. The channel is unbuffered: the driver does not fetch page
// n+1 until page n has been received.
func (p *Pager) Channel(ctx context.Context) <-chan Result {
	ch := make(chan Result)
	go func() {
		defer close(ch)
		for p.More() {
			page, err := p.NextPage(ctx)
			if err != nil {
				select {
				case ch <- Result{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case ch <- Result{Page: page}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// parsePage extracts the value array and link annotations from a page
// body.
func parsePage(body []byte) (*Page, error) {
	page := &Page{
		Raw:       body,
		NextLink:  gjson.GetBytes(body, nextLinkPath).String(),
		DeltaLink: gjson.GetBytes(body, deltaLinkPath).String(),
	}

	values := gjson.GetBytes(body, "value")
	if values.Exists() {
		if !values.IsArray() {
			return nil, fmt.Errorf("%w: page value is not an array", graph.ErrEncoding)
		}
		for _, v := range values.Array() {
			page.Values = append(page.Values, json.RawMessage(v.Raw))
		}
	}
	return page, nil
}
