// AngelaMos | 2026
// generator.go

package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/careerpilot/ledger-service/internal/config"
)

// FitAnalysis scores a résumé against one job description.
type FitAnalysis struct {
	FitScore      int      `json:"fit_score"`
	MissingSkills []string `json:"missing_skills"`
	Summary       string   `json:"summary"`
}

// OptimizedContent is application material tailored to the job.
type OptimizedContent struct {
	Content string `json:"content"`
}

// Generator produces application content against an upstream model
// service. Implementations must be safe for concurrent use.
type Generator interface {
	GenerateFitAnalysis(
		ctx context.Context,
		resumeText, jobText string,
	) (FitAnalysis, error)
	GenerateOptimizedContent(
		ctx context.Context,
		resumeText, jobText string,
	) (OptimizedContent, error)
}

type httpGenerator struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGenerator(cfg config.GeneratorConfig) Generator {
	return &httpGenerator{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *httpGenerator) GenerateFitAnalysis(
	ctx context.Context,
	resumeText, jobText string,
) (FitAnalysis, error) {
	var out FitAnalysis
	if err := g.generate(ctx, "/v1/analysis", resumeText, jobText, &out); err != nil {
		return FitAnalysis{}, err
	}
	return out, nil
}

func (g *httpGenerator) GenerateOptimizedContent(
	ctx context.Context,
	resumeText, jobText string,
) (OptimizedContent, error) {
	var out OptimizedContent
	if err := g.generate(ctx, "/v1/optimize", resumeText, jobText, &out); err != nil {
		return OptimizedContent{}, err
	}
	return out, nil
}

func (g *httpGenerator) generate(
	ctx context.Context,
	path, resumeText, jobText string,
	out any,
) error {
	payload, err := json.Marshal(map[string]string{
		"resume_text": resumeText,
		"job_text":    jobText,
	})
	if err != nil {
		return fmt.Errorf("generator: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		g.baseURL+path,
		bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("generator: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("generator: call upstream: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf(
			"generator: upstream status %d: %s",
			resp.StatusCode,
			string(body),
		)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("generator: decode response: %w", err)
	}

	return nil
}
