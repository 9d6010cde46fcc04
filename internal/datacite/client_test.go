package datacite_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscholar/doisync/internal/datacite"
	"github.com/openscholar/doisync/internal/environment"
	"github.com/openscholar/doisync/internal/export"
)

type fakeResources struct {
	resources map[string]*export.Resource
}

func (f *fakeResources) Resource(_ context.Context, id string) (*export.Resource, error) {
	if r, ok := f.resources[id]; ok {
		return r, nil
	}
	return nil, assert.AnError
}

type fakeExporter struct {
	attrs map[string]any
}

func (f *fakeExporter) ExportAttributes(_ context.Context, _ string) (map[string]any, error) {
	out := make(map[string]any, len(f.attrs))
	for k, v := range f.attrs {
		out[k] = v
	}
	return out, nil
}

func newTestClient(serverURL string, resources *fakeResources, exporter *fakeExporter) *datacite.Client {
	return datacite.NewClient(environment.Context{
		TestMode:        true,
		Endpoint:        serverURL,
		ClientID:        "EXAMPLE.SANDBOX",
		Credentials:     environment.Credentials{Username: "EXAMPLE.SANDBOX", Password: "secret"},
		AllowedPrefixes: []string{"10.5072"},
	}, resources, exporter)
}

func countingServer(t *testing.T, hits *int, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRegisterRejectsDisallowedPrefixWithoutNetwork(t *testing.T) {
	t.Parallel()

	hits := 0
	server := countingServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	client := newTestClient(server.URL, &fakeResources{resources: map[string]*export.Resource{
		"item-1": {ID: "item-1", LandingPageURL: "https://repo.example.org/item-1"},
	}}, &fakeExporter{attrs: map[string]any{}})

	_, err := client.Register(context.Background(), "item-1", "10.1234")
	require.ErrorIs(t, err, datacite.ErrInvalidPrefix)
	assert.Zero(t, hits, "precondition failures must not reach the registry")
}

func TestRegisterRejectsMissingLandingPageWithoutNetwork(t *testing.T) {
	t.Parallel()

	hits := 0
	server := countingServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	client := newTestClient(server.URL, &fakeResources{resources: map[string]*export.Resource{
		"item-1": {ID: "item-1"},
	}}, &fakeExporter{attrs: map[string]any{}})

	_, err := client.Register(context.Background(), "item-1", "10.5072")
	require.ErrorIs(t, err, datacite.ErrMissingLandingPage)
	assert.Zero(t, hits)
}

func TestRegisterBuildsPublishPayload(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/records", r.URL.Path)

		var doc struct {
			Data struct {
				Type       string         `json:"type"`
				Attributes map[string]any `json:"attributes"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		assert.Equal(t, "records", doc.Data.Type)
		captured = doc.Data.Attributes

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"10.5072/minted-1","type":"records","attributes":{"state":"findable"}}}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server.URL, &fakeResources{resources: map[string]*export.Resource{
		"item-1": {ID: "item-1", LandingPageURL: "https://repo.example.org/item-1"},
	}}, &fakeExporter{attrs: map[string]any{
		"doi":    "10.9999/stale",
		"titles": []any{map[string]any{"title": "A Dataset"}},
	}})

	record, err := client.Register(context.Background(), "item-1", "10.5072")
	require.NoError(t, err)
	assert.Equal(t, "10.5072/minted-1", record.ID)

	// The registry assigns identifiers; a stale one in the export must not
	// leak into the payload.
	assert.NotContains(t, captured, "doi")
	assert.Equal(t, "10.5072", captured["prefix"])
	assert.Equal(t, "https://repo.example.org/item-1", captured["url"])
	assert.Equal(t, "publish", captured["event"])
	assert.Contains(t, captured, "titles")
}

func TestUpdateMetadataRequiresIdentifier(t *testing.T) {
	t.Parallel()

	hits := 0
	server := countingServer(t, &hits, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(server.URL, &fakeResources{resources: map[string]*export.Resource{
		"item-1": {ID: "item-1", LandingPageURL: "https://repo.example.org/item-1"},
	}}, &fakeExporter{attrs: map[string]any{}})

	_, err := client.UpdateMetadata(context.Background(), "item-1")
	require.ErrorIs(t, err, datacite.ErrMissingIdentifier)
	assert.Zero(t, hits)
}

func TestUpdateMetadataEscapesIdentifierAndReasserts(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		// The identifier's slash must stay escaped as a single path segment.
		assert.Equal(t, "/records/10.5072%2Fabc", r.URL.EscapedPath())

		var doc struct {
			Data struct {
				Attributes map[string]any `json:"attributes"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		assert.Equal(t, "publish", doc.Data.Attributes["event"])
		assert.Equal(t, "https://repo.example.org/item-1", doc.Data.Attributes["url"])
		assert.NotContains(t, doc.Data.Attributes, "doi")

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"id":"10.5072/abc","type":"records","attributes":{"state":"findable"}}}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server.URL, &fakeResources{resources: map[string]*export.Resource{
		"item-1": {ID: "item-1", Identifier: "10.5072/abc", LandingPageURL: "https://repo.example.org/item-1"},
	}}, &fakeExporter{attrs: map[string]any{"doi": "10.5072/abc"}})

	record, err := client.UpdateMetadata(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, "10.5072/abc", record.ID)
	assert.Equal(t, "findable", record.State())
}

func TestGetRecordMapsNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"title":"The resource you are looking for doesn't exist."}]}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server.URL, &fakeResources{}, &fakeExporter{})

	_, err := client.GetRecord(context.Background(), "10.5072/missing")
	require.ErrorIs(t, err, datacite.ErrNotFound)
}

func TestGetRecordReturnsRecord(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/records/10.5072%2Fabc", r.URL.EscapedPath())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"id":"10.5072/abc","type":"records","attributes":{"url":"https://repo.example.org/item-1","state":"findable"}}}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server.URL, &fakeResources{}, &fakeExporter{})

	record, err := client.GetRecord(context.Background(), "10.5072/abc")
	require.NoError(t, err)
	assert.Equal(t, "10.5072/abc", record.ID)
	assert.Equal(t, "https://repo.example.org/item-1", record.URL())
	assert.Equal(t, "10.5072", record.Prefix())
}

func TestClientExposesEnvironmentView(t *testing.T) {
	t.Parallel()

	client := newTestClient("http://localhost", &fakeResources{}, &fakeExporter{})

	assert.True(t, client.IsTestMode())

	prefixes := client.AllowedPrefixes()
	assert.Equal(t, []string{"10.5072"}, prefixes)

	// Mutating the returned slice must not affect the client.
	prefixes[0] = "10.1234"
	assert.Equal(t, []string{"10.5072"}, client.AllowedPrefixes())
}
