package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"invoice-assistant/internal/common/config"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/models"
)

func testGenAIConfig(baseURL string) config.GenAIConfig {
	return config.GenAIConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 5000,
	}
}

func TestLLMAnalyzer_Analyze_Success(t *testing.T) {
	tests := []struct {
		name           string
		response       string
		expectedIntent models.Intent
		expectedConf   float64
		expectedEnts   int
	}{
		{
			name:           "plain classification",
			response:       `{"intent": "create_invoice", "confidence": 0.92, "entities": [{"type": "customer", "value": "James", "confidence": 0.9}]}`,
			expectedIntent: models.IntentCreateInvoice,
			expectedConf:   0.92,
			expectedEnts:   1,
		},
		{
			name:           "content envelope with markdown fences",
			response:       `{"content": "` + "```json\\n" + `{\"intent\": \"add_expense\", \"confidence\": 0.8, \"entities\": [{\"type\": \"amount\", \"value\": \"40\"}]}` + "\\n```" + `"}`,
			expectedIntent: models.IntentAddExpense,
			expectedConf:   0.8,
			expectedEnts:   1,
		},
		{
			name:           "unknown intent string maps to unknown",
			response:       `{"intent": "order_pizza", "confidence": 0.95, "entities": []}`,
			expectedIntent: models.IntentUnknown,
			expectedConf:   0.5,
			expectedEnts:   0,
		},
		{
			name:           "unknown entity types are filtered",
			response:       `{"intent": "search_customers", "confidence": 0.85, "entities": [{"type": "weather", "value": "sunny"}, {"type": "customer", "value": "Smith"}]}`,
			expectedIntent: models.IntentSearchCustomers,
			expectedConf:   0.85,
			expectedEnts:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/ai/classify", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				var body map[string]interface{}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.NotEmpty(t, body["messages"])

				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			a := NewLLMAnalyzer(testGenAIConfig(server.URL), 5, logger.NewTestLogger(t))
			analysis, err := a.Analyze(context.Background(), "test message", nil, nil)

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedIntent, analysis.Intent)
			assert.InDelta(t, tt.expectedConf, analysis.Confidence, 0.001)
			assert.Len(t, analysis.Entities, tt.expectedEnts)
			assert.Equal(t, models.SourceLLM, analysis.Source)
		})
	}
}

func TestLLMAnalyzer_Analyze_MalformedResponseDegrades(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "I think the user wants an invoice"},
		{"missing required fields", `{"entities": []}`},
		{"confidence out of range", `{"intent": "create_invoice", "confidence": 7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			a := NewLLMAnalyzer(testGenAIConfig(server.URL), 5, logger.NewTestLogger(t))
			analysis, err := a.Analyze(context.Background(), "hello", nil, nil)

			// Malformed output is not an error; it degrades confidence.
			assert.NoError(t, err)
			assert.Equal(t, models.IntentUnknown, analysis.Intent)
			assert.InDelta(t, 0.1, analysis.Confidence, 0.001)
		})
	}
}

func TestLLMAnalyzer_Analyze_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := NewLLMAnalyzer(testGenAIConfig(server.URL), 5, logger.NewTestLogger(t))
	_, err := a.Analyze(context.Background(), "hello", nil, nil)

	assert.ErrorIs(t, err, ErrAnalyzerUnavailable)
}

func TestLLMAnalyzer_Unconfigured(t *testing.T) {
	a := NewLLMAnalyzer(config.GenAIConfig{}, 5, logger.NewTestLogger(t))

	assert.False(t, a.Available())

	_, err := a.Analyze(context.Background(), "hello", nil, nil)
	assert.ErrorIs(t, err, ErrAnalyzerUnavailable)
}

type failingAnalyzer struct{}

func (failingAnalyzer) Available() bool { return true }
func (failingAnalyzer) Analyze(context.Context, string, *models.ConversationContext, []models.ConversationMessage) (*models.Analysis, error) {
	return nil, ErrAnalyzerUnavailable
}

func TestService_FallsBackWhenPrimaryFails(t *testing.T) {
	svc := NewService(failingAnalyzer{}, NewRuleAnalyzer(), logger.NewTestLogger(t))

	analysis, err := svc.Analyze(context.Background(), "Create an invoice for James", nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, models.IntentCreateInvoice, analysis.Intent)
	assert.Equal(t, models.SourceRules, analysis.Source)
}

func TestService_SkipsUnavailablePrimary(t *testing.T) {
	llm := NewLLMAnalyzer(config.GenAIConfig{}, 5, logger.NewTestLogger(t))
	svc := NewService(llm, NewRuleAnalyzer(), logger.NewTestLogger(t))

	analysis, err := svc.Analyze(context.Background(), "total gibberish xyzzy", nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, models.IntentUnknown, analysis.Intent)
	assert.InDelta(t, 0.3, analysis.Confidence, 0.001)
}
