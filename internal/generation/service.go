// AngelaMos | 2026
// service.go

package generation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/careerpilot/ledger-service/internal/settings"
)

// Deductor is the slice of the billing engine the generation flow needs.
type Deductor interface {
	DeductForUsage(
		ctx context.Context,
		userID string,
		cost int64,
		serviceName string,
	) (int64, error)
}

type Service struct {
	generator Generator
	billing   Deductor
	settings  *settings.Service
}

func NewService(
	generator Generator,
	billing Deductor,
	settingsSvc *settings.Service,
) *Service {
	return &Service{
		generator: generator,
		billing:   billing,
		settings:  settingsSvc,
	}
}

type AnalysisResult struct {
	Analysis FitAnalysis
	Charged  int64
	Balance  int64
}

type OptimizeResult struct {
	Content string
	Charged int64
	Balance int64
}

// AnalyzeFit charges the analysis cost up front, then runs the fit
// analysis. Credits are not refunded when the upstream call fails; the
// failure is logged for manual resolution.
func (s *Service) AnalyzeFit(
	ctx context.Context,
	userID, resumeText, jobText string,
) (AnalysisResult, error) {
	policy, err := s.settings.Current(ctx)
	if err != nil {
		return AnalysisResult{}, err
	}

	cost := policy.Credits.AnalysisCost
	balance, err := s.billing.DeductForUsage(ctx, userID, cost, "fit_analysis")
	if err != nil {
		return AnalysisResult{}, err
	}

	analysis, err := s.generator.GenerateFitAnalysis(ctx, resumeText, jobText)
	if err != nil {
		s.logChargedFailure(userID, "fit_analysis", cost, err)
		return AnalysisResult{}, fmt.Errorf("generation: fit analysis: %w", err)
	}

	return AnalysisResult{
		Analysis: analysis,
		Charged:  cost,
		Balance:  balance,
	}, nil
}

// OptimizeContent charges the upload cost up front, then generates
// tailored application content.
func (s *Service) OptimizeContent(
	ctx context.Context,
	userID, resumeText, jobText string,
) (OptimizeResult, error) {
	policy, err := s.settings.Current(ctx)
	if err != nil {
		return OptimizeResult{}, err
	}

	cost := policy.Credits.UploadCost
	balance, err := s.billing.DeductForUsage(
		ctx,
		userID,
		cost,
		"content_optimization",
	)
	if err != nil {
		return OptimizeResult{}, err
	}

	content, err := s.generator.GenerateOptimizedContent(ctx, resumeText, jobText)
	if err != nil {
		s.logChargedFailure(userID, "content_optimization", cost, err)
		return OptimizeResult{}, fmt.Errorf("generation: optimize: %w", err)
	}

	return OptimizeResult{
		Content: content.Content,
		Charged: cost,
		Balance: balance,
	}, nil
}

func (s *Service) logChargedFailure(
	userID, serviceName string,
	charged int64,
	err error,
) {
	slog.Error("generation failed after charge",
		"user_id", userID,
		"service", serviceName,
		"charged", charged,
		"error", err,
	)
}
