// Package analyzer turns one free-text message (plus recent history) into a
// classified intent and typed entities. The primary path delegates to the
// external language-model service; a deterministic rule-based fallback takes
// over whenever that service is unconfigured, unreachable or non-2xx.
package analyzer

import (
	"context"
	"errors"

	commonerrors "invoice-assistant/internal/common/errors"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/models"
)

// Analyzer is one classification strategy. Available reports whether the
// strategy can currently serve; the composite Service uses it to pick the
// primary or the fallback up front instead of nesting recovery logic.
type Analyzer interface {
	Analyze(ctx context.Context, message string, sctx *models.ConversationContext, history []models.ConversationMessage) (*models.Analysis, error)
	Available() bool
}

// Service composes the primary (language-model) analyzer with the rule
// fallback. Analyze never fails: any primary error degrades to the fallback,
// and the fallback itself always returns a structurally valid analysis.
type Service struct {
	primary  Analyzer
	fallback Analyzer
	logger   logger.Logger
}

func NewService(primary, fallback Analyzer, log logger.Logger) *Service {
	return &Service{
		primary:  primary,
		fallback: fallback,
		logger:   log.WithFields(map[string]interface{}{"component": "analyzer"}),
	}
}

func (s *Service) Available() bool {
	return true
}

func (s *Service) Analyze(ctx context.Context, message string, sctx *models.ConversationContext, history []models.ConversationMessage) (*models.Analysis, error) {
	if s.primary != nil && s.primary.Available() {
		analysis, err := s.primary.Analyze(ctx, message, sctx, history)
		if err == nil {
			return analysis, nil
		}
		stdErr := commonerrors.NewAnalysisFailedError(err)
		if errors.Is(err, ErrAnalyzerTimeout) {
			stdErr = commonerrors.NewLLMTimeoutError()
		}
		s.logger.WithError(stdErr).Warn("primary analyzer failed, using fallback", map[string]interface{}{
			"messageLength": len(message),
		})
	}

	analysis, err := s.fallback.Analyze(ctx, message, sctx, history)
	if err != nil {
		// The rule analyzer has no failure modes, but degrade anyway.
		s.logger.WithError(err).Error("fallback analyzer failed", nil)
		return &models.Analysis{
			Intent:     models.IntentUnknown,
			Entities:   []models.Entity{},
			Confidence: 0.3,
			Source:     models.SourceRules,
		}, nil
	}
	return analysis, nil
}
