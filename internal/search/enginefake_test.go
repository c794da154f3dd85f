package search

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/require"
)

// addCall records one bulk upsert received by the fake engine.
type addCall struct {
	Index      string
	PrimaryKey string
	Docs       []map[string]any
}

// searchCall records one query received by the fake engine.
type searchCall struct {
	Index   string
	Query   string
	Request *meilisearch.SearchRequest
}

// fakeEngine implements Engine in memory for tests.
type fakeEngine struct {
	mu sync.Mutex

	ensured  map[string]string // index -> primary key
	settings map[string]*meilisearch.Settings

	addCalls []addCall
	// failNextAdds makes that many AddDocuments calls fail first.
	failNextAdds int

	searchCalls []searchCall
	searchResp  *meilisearch.SearchResponse
	searchErr   error

	similarHits []map[string]any
	similarErr  error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		ensured:  make(map[string]string),
		settings: make(map[string]*meilisearch.Settings),
	}
}

func (f *fakeEngine) EnsureIndex(_ context.Context, uid, primaryKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured[uid] = primaryKey
	return nil
}

func (f *fakeEngine) ApplySettings(_ context.Context, uid string, settings *meilisearch.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[uid] = settings
	return nil
}

func (f *fakeEngine) AddDocuments(_ context.Context, uid string, docs any, primaryKey string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNextAdds > 0 {
		f.failNextAdds--
		return 0, ErrEngineUnavailable
	}
	decoded, err := jsonRoundTrip(docs)
	if err != nil {
		return 0, err
	}
	f.addCalls = append(f.addCalls, addCall{Index: uid, PrimaryKey: primaryKey, Docs: decoded})
	return int64(len(f.addCalls)), nil
}

func (f *fakeEngine) WaitForTask(context.Context, int64) error { return nil }

func (f *fakeEngine) Search(_ context.Context, uid, query string, req *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, searchCall{Index: uid, Query: query, Request: req})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.searchResp != nil {
		return f.searchResp, nil
	}
	return &meilisearch.SearchResponse{}, nil
}

func (f *fakeEngine) SimilarDocuments(context.Context, string, *meilisearch.SimilarDocumentQuery) ([]map[string]any, error) {
	if f.similarErr != nil {
		return nil, f.similarErr
	}
	return f.similarHits, nil
}

func (f *fakeEngine) Healthy(context.Context) bool { return true }

// searchResponse builds an engine response through JSON so the test does
// not depend on the client library's internal hit representation.
func searchResponse(t *testing.T, hits []map[string]any, total int64) *meilisearch.SearchResponse {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"hits":               hits,
		"estimatedTotalHits": total,
	})
	require.NoError(t, err)
	var resp meilisearch.SearchResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return &resp
}

var _ Engine = (*fakeEngine)(nil)
