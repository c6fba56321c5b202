package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
)

func TestNew_DisabledWithoutEndpoint(t *testing.T) {
	e := New(config.EnrichConfig{})
	assert.False(t, e.Enabled())

	out, err := e.Detect(context.Background(), []Page{{Text: "x"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0])
}

func TestHTTPEnricher_Detect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Pages, 2)

		resp := detectResponse{Pages: [][]Entity{
			{{Label: "COMPANY", Confidence: 0.91}},
			{{Label: "TOTAL", Confidence: 0.75}},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	e := New(config.EnrichConfig{Endpoint: srv.URL, TimeoutSecs: 5, RequestsPerSec: 100})
	require.True(t, e.Enabled())

	out, err := e.Detect(context.Background(), []Page{
		{ImagePath: "page_1.png", Text: "Acme Co Inc\nInvoice"},
		{ImagePath: "page_2.png", Text: "Total: $10"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "COMPANY", out[0][0].Label)
	assert.Equal(t, "TOTAL", out[1][0].Label)
}

func TestHTTPEnricher_RetriesServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := newFastRetryEnricher(srv.URL)
	_, err := e.Detect(context.Background(), []Page{{Text: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPEnricher_NoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad payload", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	e := newFastRetryEnricher(srv.URL)
	_, err := e.Detect(context.Background(), []Page{{Text: "x"}})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// newFastRetryEnricher shrinks the backoff so retry tests stay quick.
func newFastRetryEnricher(endpoint string) Enricher {
	e := New(config.EnrichConfig{Endpoint: endpoint, RequestsPerSec: 1000}).(*HTTPEnricher)
	e.retry.InitialBackoff = time.Millisecond
	e.retry.MaxBackoff = 2 * time.Millisecond
	e.retry.OnRetry = nil
	return e
}

func TestHTTPEnricher_PageCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(detectResponse{Pages: [][]Entity{}}))
	}))
	defer srv.Close()

	e := New(config.EnrichConfig{Endpoint: srv.URL, RequestsPerSec: 100})
	_, err := e.Detect(context.Background(), []Page{{Text: "x"}})
	require.Error(t, err)
}

func TestApply_SupplierOnlyWhenEmpty(t *testing.T) {
	pages := []Page{{Text: "Acme Co Inc\n123 Main St"}}
	detections := [][]Entity{{{Label: "COMPANY", Confidence: 0.9}}}

	data := &model.ExtractedData{}
	Apply(data, map[string]any{}, pages, detections)
	require.NotNil(t, data.Supplier)
	assert.Equal(t, "Acme Co Inc 123 Main St", *data.Supplier)

	populated := &model.ExtractedData{Supplier: model.Str("Globex Ltd")}
	Apply(populated, map[string]any{}, pages, detections)
	assert.Equal(t, "Globex Ltd", *populated.Supplier)
}

func TestSupplierCandidate_JoinsTopFiveLines(t *testing.T) {
	text := "Acme Co Inc\n\n  123 Main St  \nSuite 400\nSpringfield\nIgnored Sixth Line"
	assert.Equal(t, "Acme Co Inc 123 Main St Suite 400 Springfield", supplierCandidate(text))

	assert.Equal(t, "", supplierCandidate("\n\n\n"))
}

func TestApply_HintsNeverOverwrite(t *testing.T) {
	pages := []Page{{Text: "page one"}}
	detections := [][]Entity{{
		{Label: "DATE", Confidence: 0.8},
		{Label: "ADDRESS", Confidence: 0.7},
		{Label: "TOTAL", Confidence: 0.6},
	}}

	additional := map[string]any{"date_hint": "already set"}
	Apply(&model.ExtractedData{}, additional, pages, detections)

	assert.Equal(t, "already set", additional["date_hint"])
	assert.Equal(t, "detected on page 1", additional["supplier_address_hint"])
	assert.Equal(t, "detected on page 1", additional["total_hint"])
}
