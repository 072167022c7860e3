package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"invoice-assistant/internal/common/config"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/models"
)

var (
	ErrAnalyzerUnavailable = errors.New("ANALYZER_UNAVAILABLE")
	ErrAnalyzerTimeout     = errors.New("LLM_TIMEOUT")
)

// LLMAnalyzer calls the external language-model service. A transport
// failure, timeout or non-2xx response is returned as an error so the
// Service can substitute the fallback; a 2xx response that fails to parse
// as a classification degrades to intent=unknown with low confidence
// instead of failing the turn.
type LLMAnalyzer struct {
	cfg           config.GenAIConfig
	client        *http.Client
	historyWindow int
	logger        logger.Logger
}

func NewLLMAnalyzer(cfg config.GenAIConfig, historyWindow int, log logger.Logger) *LLMAnalyzer {
	return &LLMAnalyzer{
		cfg: cfg,
		client: &http.Client{
			// No client timeout; the per-call context bounds the request.
		},
		historyWindow: historyWindow,
		logger:        log.WithFields(map[string]interface{}{"component": "llm-analyzer"}),
	}
}

func (a *LLMAnalyzer) Available() bool {
	return a.cfg.Configured()
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, message string, sctx *models.ConversationContext, history []models.ConversationMessage) (*models.Analysis, error) {
	if !a.Available() {
		return nil, fmt.Errorf("%w: no base URL configured", ErrAnalyzerUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, config.GetDuration(a.cfg.Timeout))
	defer cancel()

	requestBody := map[string]interface{}{
		"messages": buildMessages(message, sctx, history, a.historyWindow),
	}
	if a.cfg.Model != "" {
		requestBody["model"] = a.cfg.Model
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, "POST", a.cfg.BaseURL+"/api/ai/classify", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalyzerUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, ErrAnalyzerTimeout
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalyzerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAnalyzerUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrAnalyzerUnavailable, err)
	}

	payload := extractPayload(raw)
	c, err := parseClassification(payload)
	if err != nil {
		// Malformed model output degrades confidence instead of failing.
		a.logger.WithError(err).Warn("malformed classification payload", map[string]interface{}{
			"payloadLength": len(payload),
		})
		return &models.Analysis{
			Intent:     models.IntentUnknown,
			Entities:   []models.Entity{},
			Confidence: 0.1,
			Source:     models.SourceLLM,
		}, nil
	}

	return a.toAnalysis(c), nil
}

// extractPayload unwraps a {"content": "..."} envelope and strips markdown
// fences; the service replies free text that is expected to be JSON.
func extractPayload(raw []byte) []byte {
	var envelope struct {
		Content string `json:"content"`
	}
	text := string(raw)
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Content != "" {
		text = envelope.Content
	}

	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	return []byte(text)
}

func (a *LLMAnalyzer) toAnalysis(c *classification) *models.Analysis {
	intent := models.Intent(c.Intent)
	confidence := c.Confidence
	if !intent.Valid() {
		intent = models.IntentUnknown
		if confidence > 0.5 {
			confidence = 0.5
		}
	}

	entities := make([]models.Entity, 0, len(c.Entities))
	for _, e := range c.Entities {
		t := models.EntityType(e.Type)
		known := false
		for _, k := range models.KnownEntityTypes {
			if t == k {
				known = true
				break
			}
		}
		if !known {
			continue
		}
		conf := e.Confidence
		if conf == 0 {
			conf = confidence
		}
		entities = append(entities, models.Entity{Type: t, Value: e.Value, Confidence: conf})
	}

	a.logger.Info("message classified", map[string]interface{}{
		"intent":      intent,
		"confidence":  confidence,
		"entityCount": len(entities),
	})

	return &models.Analysis{
		Intent:     intent,
		Entities:   entities,
		Confidence: confidence,
		Source:     models.SourceLLM,
	}
}
