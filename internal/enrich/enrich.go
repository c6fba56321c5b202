// Package enrich integrates the optional external entity-detection
// collaborator. Absence of the collaborator is a typed state, not an
// error: Disabled implements the interface with empty responses, and
// enrichment failures degrade to the rule-based result.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/resilience"
)

// Entity is one detection on a page. Labels come from a fixed set:
// COMPANY, DATE, ADDRESS, TOTAL.
type Entity struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Page pairs a rendered page image with its recognized text.
type Page struct {
	ImagePath string `json:"image_path"`
	Text      string `json:"text"`
}

// Enricher returns per-page entity detections for a document's pages.
type Enricher interface {
	Detect(ctx context.Context, pages []Page) ([][]Entity, error)
	Enabled() bool
}

// Disabled is the no-op Enricher used when no endpoint is configured.
type Disabled struct{}

func (Disabled) Detect(ctx context.Context, pages []Page) ([][]Entity, error) {
	return make([][]Entity, len(pages)), nil
}

func (Disabled) Enabled() bool { return false }

// HTTPEnricher posts pages to a detection endpoint, throttled so bursts
// of concurrent jobs cannot flood the collaborator. Transient failures
// are retried with backoff.
type HTTPEnricher struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
}

// New returns an HTTPEnricher for the configured endpoint, or Disabled
// when none is set.
func New(cfg config.EnrichConfig) Enricher {
	if cfg.Endpoint == "" {
		return Disabled{}
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2.0
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("enrich", "detect")
	return &HTTPEnricher{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		retry:    retry,
	}
}

func (e *HTTPEnricher) Enabled() bool { return true }

type detectRequest struct {
	Pages []Page `json:"pages"`
}

type detectResponse struct {
	Pages [][]Entity `json:"pages"`
}

// Detect sends all pages in one request and returns one entity list per
// page, aligned by page index. Transient endpoint failures are retried.
func (e *HTTPEnricher) Detect(ctx context.Context, pages []Page) ([][]Entity, error) {
	if len(pages) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(detectRequest{Pages: pages})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: encode request")
	}

	return resilience.DoVal(ctx, e.retry, func(ctx context.Context) ([][]Entity, error) {
		return e.detectOnce(ctx, body, len(pages))
	})
}

func (e *HTTPEnricher) detectOnce(ctx context.Context, body []byte, pageCount int) ([][]Entity, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "enrich: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "enrich: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: call detection endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := eris.Errorf("enrich: detection endpoint returned %d: %s", resp.StatusCode, payload)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "enrich: decode response")
	}
	if len(out.Pages) != pageCount {
		return nil, eris.Errorf("enrich: got %d entity lists for %d pages", len(out.Pages), pageCount)
	}
	return out.Pages, nil
}

// Apply folds per-page detections into the extracted data. A COMPANY
// detection contributes a supplier candidate from that page's leading
// lines only when rule extraction left supplier empty; DATE, ADDRESS and
// TOTAL become non-authoritative hint flags in additional, never
// overwriting populated fields.
func Apply(data *model.ExtractedData, additional map[string]any, pages []Page, detections [][]Entity) {
	for i, entities := range detections {
		if i >= len(pages) {
			break
		}
		for _, ent := range entities {
			switch strings.ToUpper(ent.Label) {
			case "COMPANY":
				if data.Supplier == nil {
					if cand := supplierCandidate(pages[i].Text); cand != "" {
						data.Supplier = model.Str(cand)
						zap.L().Debug("enrichment supplied supplier candidate",
							zap.Int("page", i+1), zap.String("supplier", cand))
					}
				}
			case "DATE":
				setHint(additional, "date_hint", i+1)
			case "ADDRESS":
				setHint(additional, "supplier_address_hint", i+1)
			case "TOTAL":
				setHint(additional, "total_hint", i+1)
			}
		}
	}
}

func setHint(additional map[string]any, key string, page int) {
	if _, ok := additional[key]; ok {
		return
	}
	additional[key] = fmt.Sprintf("detected on page %d", page)
}

// supplierCandidate joins the non-blank content of a page's top five
// lines into a supplier guess.
func supplierCandidate(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 5 {
		lines = lines[:5]
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
