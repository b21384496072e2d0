package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/metrics"
	"github.com/arturoeanton/stackmemory/internal/port"
)

// ChatRequest is one user turn of a project conversation.
type ChatRequest struct {
	Message string
	History []port.Message
	Image   []byte
}

// AIService turns assembled context into task outputs.
type AIService struct {
	contexts *ContextService
	gen      port.Generator
	metrics  *metrics.Metrics
}

// NewAIService creates a new AI service.
func NewAIService(contexts *ContextService, gen port.Generator, m *metrics.Metrics) *AIService {
	return &AIService{contexts: contexts, gen: gen, metrics: m}
}

func (s *AIService) generate(ctx context.Context, req port.GenerateRequest) (string, error) {
	out, err := s.gen.Generate(ctx, req)
	s.metrics.Generation(s.gen.ModelName(), err)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return out, nil
}

// Chat answers a question about the project, grounding the reply in the
// chunks most similar to the message.
func (s *AIService) Chat(ctx context.Context, projectID string, req ChatRequest) (*domain.ChatAnswer, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("chat: message is required: %w", port.ErrInvalidInput)
	}
	bundle, err := s.contexts.Assemble(ctx, projectID, domain.TaskChat, ContextParams{Query: req.Message})
	if err != nil {
		return nil, err
	}
	profile, _ := profileFor(domain.TaskChat)

	answer, err := s.generate(ctx, port.GenerateRequest{
		System:  profile.System,
		Prompt:  fmt.Sprintf("Project context:\n%s\n\nQuestion: %s", bundle.Text, req.Message),
		Image:   req.Image,
		History: req.History,
	})
	if err != nil {
		return nil, err
	}
	return &domain.ChatAnswer{Answer: answer, Model: s.gen.ModelName(), Sources: sources(bundle)}, nil
}

func (s *AIService) runTask(ctx context.Context, projectID string, task domain.TaskType) (string, error) {
	bundle, err := s.contexts.Assemble(ctx, projectID, task, ContextParams{})
	if err != nil {
		return "", err
	}
	profile, _ := profileFor(task)
	return s.generate(ctx, port.GenerateRequest{
		System: profile.System,
		Prompt: fmt.Sprintf("%s\n\nProject context:\n%s", profile.Instruction, bundle.Text),
	})
}

// Insight produces a structured assessment of the project.
func (s *AIService) Insight(ctx context.Context, projectID string) (*domain.InsightReport, error) {
	raw, err := s.runTask(ctx, projectID, domain.TaskInsight)
	if err != nil {
		return nil, err
	}
	var report domain.InsightReport
	if err := decodeJSON(raw, &report); err != nil {
		slog.Warn("insight reply is not JSON, using raw text", "project_id", projectID, "error", err)
		return &domain.InsightReport{Summary: raw, Score: extractScore(raw), Raw: raw, Degraded: true}, nil
	}
	return &report, nil
}

// Onboarding produces a guide for new contributors.
func (s *AIService) Onboarding(ctx context.Context, projectID string) (*domain.OnboardingGuide, error) {
	raw, err := s.runTask(ctx, projectID, domain.TaskOnboarding)
	if err != nil {
		return nil, err
	}
	var guide domain.OnboardingGuide
	if err := decodeJSON(raw, &guide); err != nil {
		slog.Warn("onboarding reply is not JSON, using raw text", "project_id", projectID, "error", err)
		return &domain.OnboardingGuide{Overview: raw, Raw: raw, Degraded: true}, nil
	}
	return &guide, nil
}

// Tour produces an ordered walk through the project's important files.
func (s *AIService) Tour(ctx context.Context, projectID string) (*domain.Tour, error) {
	raw, err := s.runTask(ctx, projectID, domain.TaskTour)
	if err != nil {
		return nil, err
	}
	var steps []domain.TourStep
	if err := decodeJSON(raw, &steps); err != nil {
		slog.Warn("tour reply is not JSON, returning no steps", "project_id", projectID, "error", err)
		return &domain.Tour{Steps: []domain.TourStep{}, Raw: raw, Degraded: true}, nil
	}
	steps = slices.DeleteFunc(steps, func(st domain.TourStep) bool { return st.FilePath == "" })
	return &domain.Tour{Steps: steps}, nil
}

func sources(b *domain.ContextBundle) []string {
	out := []string{}
	for _, sec := range b.Sections {
		if !slices.Contains(out, sec.FilePath) {
			out = append(out, sec.FilePath)
		}
	}
	return out
}

// decodeJSON decodes the first JSON value of a model reply, tolerating code
// fences and surrounding prose.
func decodeJSON(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return fmt.Errorf("no JSON value: %w", port.ErrMalformedResponse)
	}
	if err := json.NewDecoder(strings.NewReader(s[start:])).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", port.ErrMalformedResponse, err)
	}
	return nil
}

// extractScore finds the last "Score: X/10" in text, 0 when absent.
func extractScore(text string) float64 {
	i := strings.LastIndex(text, "Score:")
	if i < 0 {
		return 0
	}
	rest := strings.TrimLeft(text[i+len("Score:"):], " *")
	if strings.HasPrefix(rest, "10") {
		return 10
	}
	if rest != "" && rest[0] >= '0' && rest[0] <= '9' {
		return float64(rest[0] - '0')
	}
	return 0
}
