package datacite

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// recordsPath is the collection path for identifier records
const recordsPath = "/records"

// initialCursor is the registry-defined starting cursor for a bulk listing
const initialCursor = "1"

// Pager walks a prefix's records page by page using server-issued cursors.
// It never fabricates cursor values: after the first page every cursor comes
// from the previous response's next link. Consecutive fetches are paced by
// the transport's inter-page interval.
//
// A Pager is not safe for concurrent use.
type Pager struct {
	transport *Transport
	prefix    string
	pageSize  int
	maxPages  int

	cursor  string
	buf     []Record
	fetched int
	total   int
	done    bool
	err     error
}

// NewPager prepares a paged listing of all records under prefix. pageSize
// and maxPages are assumed already clamped by the configuration layer.
func NewPager(transport *Transport, prefix string, pageSize, maxPages int) *Pager {
	return &Pager{
		transport: transport,
		prefix:    prefix,
		pageSize:  pageSize,
		maxPages:  maxPages,
		cursor:    initialCursor,
	}
}

// Next returns the next record in listing order. It fetches pages lazily and
// skips over empty pages that still carry a continuation cursor. The second
// return value is false when the listing is exhausted or failed; consult Err
// to distinguish.
func (p *Pager) Next(ctx context.Context) (Record, bool) {
	for len(p.buf) == 0 && !p.done {
		if err := p.fetchPage(ctx); err != nil {
			p.err = err
			p.done = true
		}
	}

	if len(p.buf) == 0 {
		return Record{}, false
	}

	record := p.buf[0]
	p.buf = p.buf[1:]
	return record, true
}

// Err returns the error that terminated the listing, if any
func (p *Pager) Err() error {
	return p.err
}

// PagesFetched returns how many pages have been retrieved so far
func (p *Pager) PagesFetched() int {
	return p.fetched
}

// Total returns the server-reported total record count for the listing, as
// seen on the most recent page.
func (p *Pager) Total() int {
	return p.total
}

func (p *Pager) fetchPage(ctx context.Context) error {
	if p.fetched >= p.maxPages {
		return fmt.Errorf("page ceiling of %d reached for prefix %s; listing aborted", p.maxPages, p.prefix)
	}

	// Pace between pages, not before the first one.
	if p.fetched > 0 {
		if err := p.transport.Pace(ctx); err != nil {
			return err
		}
	}

	query := url.Values{}
	query.Set("prefix", p.prefix)
	query.Set("page[cursor]", p.cursor)
	query.Set("page[size]", strconv.Itoa(p.pageSize))

	doc, err := p.transport.GetList(ctx, recordsPath, query)
	if err != nil {
		return err
	}

	p.fetched++
	p.total = doc.Meta.Total
	p.buf = append(p.buf, doc.Data...)

	next, err := nextCursor(doc.Links.Next)
	if err != nil {
		return err
	}

	// No continuation, or a cursor that does not advance, ends the walk.
	if next == "" || next == p.cursor {
		p.done = true
		return nil
	}
	p.cursor = next
	return nil
}
