// Package agent runs the optional narrative analysis of an extracted
// document. Analysis is best effort: any failure yields a nil analysis
// and the job completes without one.
package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/pkg/anthropic"
)

const systemPrompt = `You are reviewing fields extracted from a business document.
Given the extracted data and any additional fields, respond with a JSON object:
{"summary": "...", "flags": ["..."], "recommendations": ["..."]}
Flags call out missing, inconsistent or suspicious values. Respond with JSON only.`

// Analyzer produces a narrative analysis of extracted data, or nil when
// analysis is unavailable or fails.
type Analyzer interface {
	Analyze(ctx context.Context, data *model.ExtractedData, additional map[string]any) *model.AgentAnalysis
	Enabled() bool
}

// Disabled is the no-op Analyzer used when no API key is configured.
type Disabled struct{}

func (Disabled) Analyze(context.Context, *model.ExtractedData, map[string]any) *model.AgentAnalysis {
	return nil
}

func (Disabled) Enabled() bool { return false }

type anthropicAnalyzer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New returns an Analyzer backed by the Anthropic API, or Disabled when
// cfg.Key is empty.
func New(cfg config.AnthropicConfig) Analyzer {
	if cfg.Key == "" {
		return Disabled{}
	}
	return &anthropicAnalyzer{
		client:    anthropic.NewClient(cfg.Key),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
}

// newWithClient is the test seam.
func newWithClient(client anthropic.Client, model string, maxTokens int64) Analyzer {
	return &anthropicAnalyzer{client: client, model: model, maxTokens: maxTokens}
}

func (a *anthropicAnalyzer) Enabled() bool { return true }

type analysisPayload struct {
	ExtractedData    *model.ExtractedData `json:"extracted_data"`
	AdditionalFields map[string]any       `json:"additional_fields"`
}

type analysisResponse struct {
	Summary         string   `json:"summary"`
	Flags           []string `json:"flags"`
	Recommendations []string `json:"recommendations"`
}

func (a *anthropicAnalyzer) Analyze(ctx context.Context, data *model.ExtractedData, additional map[string]any) *model.AgentAnalysis {
	start := time.Now()

	payload, err := json.Marshal(analysisPayload{ExtractedData: data, AdditionalFields: additional})
	if err != nil {
		zap.L().Warn("agent: encode payload failed", zap.Error(err))
		return nil
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: string(payload)}},
	})
	if err != nil {
		zap.L().Warn("agent: analysis call failed", zap.Error(err))
		return nil
	}
	resp.Usage.LogCost(a.model, "document-analysis")

	var parsed analysisResponse
	if err := json.Unmarshal([]byte(stripFences(resp.Text())), &parsed); err != nil {
		zap.L().Warn("agent: unparseable analysis response", zap.Error(err))
		return nil
	}

	return &model.AgentAnalysis{
		Summary:         parsed.Summary,
		Flags:           parsed.Flags,
		Recommendations: parsed.Recommendations,
		Model:           a.model,
		ExecutionTime:   time.Since(start).Seconds(),
	}
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
