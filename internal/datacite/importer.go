package datacite

import (
	"context"
	"net/url"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// Importer drives bulk listings across a set of prefixes. Prefixes are
// walked sequentially and failures are isolated: a prefix that cannot be
// listed is reported and the remaining prefixes still run.
type Importer struct {
	transport *Transport
	pageSize  int
	maxPages  int
}

// NewImporter creates an importer. pageSize and maxPages come pre-clamped
// from the configuration layer.
func NewImporter(transport *Transport, pageSize, maxPages int) *Importer {
	return &Importer{
		transport: transport,
		pageSize:  pageSize,
		maxPages:  maxPages,
	}
}

// PrefixResult summarizes one prefix's share of an import run
type PrefixResult struct {
	Prefix  string
	Records int
	Pages   int
	Err     error
}

// Report summarizes an import run across all requested prefixes
type Report struct {
	RunID    uuid.UUID
	Started  time.Time
	Finished time.Time
	Results  []PrefixResult
}

// TotalRecords returns the number of records the run yielded
func (r *Report) TotalRecords() int {
	total := 0
	for _, result := range r.Results {
		total += result.Records
	}
	return total
}

// Failed returns the results of prefixes that did not complete
func (r *Report) Failed() []PrefixResult {
	var failed []PrefixResult
	for _, result := range r.Results {
		if result.Err != nil {
			failed = append(failed, result)
		}
	}
	return failed
}

// Stream yields the records of an import run one at a time, in listing
// order within each prefix. After exhaustion, Report carries the per-prefix
// outcome. A Stream is not safe for concurrent use.
type Stream struct {
	importer *Importer
	prefixes []string

	index   int
	pager   *Pager
	records int
	report  *Report
}

// ImportAll starts an import run over the given prefixes. No requests are
// issued until the stream is first read.
func (i *Importer) ImportAll(prefixes []string) *Stream {
	return &Stream{
		importer: i,
		prefixes: prefixes,
		report: &Report{
			RunID:   uuid.New(),
			Started: time.Now().UTC(),
		},
	}
}

// Next returns the next imported record. It returns false once every prefix
// has been walked; per-prefix failures do not stop the stream, they are
// recorded in the report.
func (s *Stream) Next(ctx context.Context) (Record, bool) {
	for s.index < len(s.prefixes) {
		if s.pager == nil {
			s.pager = NewPager(s.importer.transport, s.prefixes[s.index], s.importer.pageSize, s.importer.maxPages)
			s.records = 0
		}

		record, ok := s.pager.Next(ctx)
		if ok {
			s.records++
			return record, true
		}

		s.report.Results = append(s.report.Results, PrefixResult{
			Prefix:  s.prefixes[s.index],
			Records: s.records,
			Pages:   s.pager.PagesFetched(),
			Err:     s.pager.Err(),
		})
		s.pager = nil
		s.index++
	}

	if s.report.Finished.IsZero() {
		s.report.Finished = time.Now().UTC()
	}
	return Record{}, false
}

// Report returns the run summary. It is complete only after Next has
// returned false.
func (s *Stream) Report() *Report {
	return s.report
}

// TotalCount probes each prefix with a single-record page and sums the
// server-reported totals. A prefix whose probe fails contributes zero and is
// surfaced in the returned results rather than aborting the count.
func (i *Importer) TotalCount(ctx context.Context, prefixes []string) (int, []PrefixResult) {
	logger := logr.FromContextOrDiscard(ctx)

	total := 0
	results := make([]PrefixResult, 0, len(prefixes))
	for _, prefix := range prefixes {
		query := url.Values{}
		query.Set("prefix", prefix)
		query.Set("page[size]", "1")

		doc, err := i.transport.GetList(ctx, recordsPath, query)
		if err != nil {
			logger.Info("count probe failed, contributing zero", "prefix", prefix, "error", err.Error())
			results = append(results, PrefixResult{Prefix: prefix, Err: err})
			continue
		}

		total += doc.Meta.Total
		results = append(results, PrefixResult{Prefix: prefix, Records: doc.Meta.Total, Pages: 1})
	}
	return total, results
}
