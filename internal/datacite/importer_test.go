package datacite_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscholar/doisync/internal/datacite"
)

func sequentialIDs(prefix string, from, count int) []string {
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		ids = append(ids, fmt.Sprintf("%s/rec-%04d", prefix, from+i))
	}
	return ids
}

func TestImporterStreamsAllPages(t *testing.T) {
	t.Parallel()

	// 237 records under one prefix, served as 100 + 100 + 37.
	hits := 0
	server := newScriptedServer(t, pageScript{
		"1": pageBody("https://api.test.example.org/records?page[cursor]=2", 237, sequentialIDs("10.5072", 0, 100)...),
		"2": pageBody("https://api.test.example.org/records?page[cursor]=3", 237, sequentialIDs("10.5072", 100, 100)...),
		"3": pageBody("", 237, sequentialIDs("10.5072", 200, 37)...),
	}, &hits)

	importer := datacite.NewImporter(newTestTransport(server.URL), 100, 1000)
	stream := importer.ImportAll([]string{"10.5072"})

	var ids []string
	for {
		record, ok := stream.Next(context.Background())
		if !ok {
			break
		}
		ids = append(ids, record.ID)
	}

	require.Len(t, ids, 237)
	assert.Equal(t, "10.5072/rec-0000", ids[0])
	assert.Equal(t, "10.5072/rec-0236", ids[236])
	assert.Equal(t, 3, hits)

	report := stream.Report()
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", report.RunID.String())
	assert.False(t, report.Finished.IsZero())
	require.Len(t, report.Results, 1)
	assert.Equal(t, 237, report.Results[0].Records)
	assert.Equal(t, 3, report.Results[0].Pages)
	require.NoError(t, report.Results[0].Err)
	assert.Equal(t, 237, report.TotalRecords())
	assert.Empty(t, report.Failed())
}

func TestImporterIsolatesPrefixFailures(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("prefix") {
		case "10.5072":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(pageBody("", 2, "10.5072/a", "10.5072/b")))
		case "10.5073":
			w.WriteHeader(http.StatusForbidden)
		case "10.5074":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(pageBody("", 1, "10.5074/c")))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	importer := datacite.NewImporter(newTestTransport(server.URL), 100, 1000)
	stream := importer.ImportAll([]string{"10.5072", "10.5073", "10.5074"})

	var ids []string
	for {
		record, ok := stream.Next(context.Background())
		if !ok {
			break
		}
		ids = append(ids, record.ID)
	}

	// The broken middle prefix does not stop the last one.
	assert.Equal(t, []string{"10.5072/a", "10.5072/b", "10.5074/c"}, ids)

	report := stream.Report()
	require.Len(t, report.Results, 3)
	require.NoError(t, report.Results[0].Err)
	require.Error(t, report.Results[1].Err)
	assert.Equal(t, "10.5073", report.Results[1].Prefix)
	require.NoError(t, report.Results[2].Err)

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "10.5073", failed[0].Prefix)
	assert.Equal(t, 3, report.TotalRecords())
}

func TestImporterIssuesNoRequestsBeforeFirstRead(t *testing.T) {
	t.Parallel()

	hits := 0
	server := newScriptedServer(t, pageScript{
		"1": pageBody("", 0),
	}, &hits)

	importer := datacite.NewImporter(newTestTransport(server.URL), 100, 1000)
	stream := importer.ImportAll([]string{"10.5072"})
	assert.Equal(t, 0, hits)

	_, ok := stream.Next(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 1, hits)
}

func TestTotalCountSumsServerTotals(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page[size]"))

		switch r.URL.Query().Get("prefix") {
		case "10.5072":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(pageBody("", 1200, "10.5072/a")))
		case "10.5073":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(pageBody("", 37, "10.5073/b")))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	importer := datacite.NewImporter(newTestTransport(server.URL), 100, 1000)
	total, results := importer.TotalCount(context.Background(), []string{"10.5072", "10.5073"})

	assert.Equal(t, 1237, total)
	require.Len(t, results, 2)
	assert.Equal(t, 1200, results[0].Records)
	assert.Equal(t, 37, results[1].Records)
}

func TestTotalCountTreatsFailedProbeAsZero(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("prefix") {
		case "10.5072":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(pageBody("", 50, "10.5072/a")))
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	t.Cleanup(server.Close)

	importer := datacite.NewImporter(newTestTransport(server.URL), 100, 1000)
	total, results := importer.TotalCount(context.Background(), []string{"10.5072", "10.9999"})

	assert.Equal(t, 50, total)
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.Zero(t, results[1].Records)
}
