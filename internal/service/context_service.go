package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/metrics"
	"github.com/arturoeanton/stackmemory/internal/port"
)

const (
	treeHeader        = "## File tree\n"
	treeMoreLine      = "... (more files not shown)\n"
	maxCriticalChunks = 200
)

// ContextConfig bounds context assembly.
type ContextConfig struct {
	MaxChars     int
	MaxTreePaths int
	TopK         int
}

// ContextParams tunes one assembly. Zero values fall back to the configuration.
type ContextParams struct {
	Query    string
	TopK     int
	MaxChars int
	Patterns []string
}

// ContextService assembles bounded context bundles for AI tasks.
type ContextService struct {
	projects port.ProjectStore
	chunks   port.ChunkStore
	search   *SearchService
	cfg      ContextConfig
	metrics  *metrics.Metrics
}

// NewContextService creates a new context assembler.
func NewContextService(projects port.ProjectStore, chunks port.ChunkStore, search *SearchService, cfg ContextConfig, m *metrics.Metrics) *ContextService {
	return &ContextService{projects: projects, chunks: chunks, search: search, cfg: cfg, metrics: m}
}

// Assemble builds the context bundle of a task: the file tree, the task's
// critical files and, when a query is given, the chunks most similar to it.
// The rendered text never exceeds the budget; sections are dropped to fit.
func (s *ContextService) Assemble(ctx context.Context, projectID string, task domain.TaskType, params ContextParams) (*domain.ContextBundle, error) {
	profile, ok := profileFor(task)
	if !ok {
		return nil, fmt.Errorf("assemble %q: %w", task, port.ErrUnknownTask)
	}
	if _, err := s.projects.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	treeLimit := s.cfg.MaxTreePaths
	fetchLimit := 0
	if treeLimit > 0 {
		fetchLimit = treeLimit + 1
	}
	paths, err := s.chunks.DistinctPaths(ctx, projectID, fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("assemble tree: %w", err)
	}
	moreFiles := treeLimit > 0 && len(paths) > treeLimit
	if moreFiles {
		paths = paths[:treeLimit]
	}

	patterns := profile.Patterns
	if len(params.Patterns) > 0 {
		patterns = params.Patterns
	}
	critical, err := s.chunks.FindByPathPatterns(ctx, projectID, patterns, maxCriticalChunks)
	if err != nil {
		return nil, fmt.Errorf("assemble critical files: %w", err)
	}

	sections := make([]domain.ContextSection, 0, len(critical))
	seen := map[string]bool{}
	for _, c := range critical {
		seen[sectionKey(c.FilePath, c.Ordinal)] = true
		sections = append(sections, domain.ContextSection{
			FilePath: c.FilePath,
			Ordinal:  c.Ordinal,
			Content:  c.Content,
			Source:   domain.SourceCritical,
		})
	}

	topK := cmp.Or(params.TopK, s.cfg.TopK)
	if params.Query != "" && topK > 0 {
		similar, err := s.search.Similar(ctx, projectID, params.Query, topK)
		if err != nil {
			return nil, fmt.Errorf("assemble similar chunks: %w", err)
		}
		for _, c := range similar {
			key := sectionKey(c.FilePath, c.Ordinal)
			if seen[key] {
				continue
			}
			seen[key] = true
			sections = append(sections, domain.ContextSection{
				FilePath: c.FilePath,
				Ordinal:  c.Ordinal,
				Content:  c.Content,
				Source:   domain.SourceSimilar,
				Score:    c.Similarity,
			})
		}
	}

	budget := s.cfg.MaxChars
	if params.MaxChars > 0 && (budget <= 0 || params.MaxChars < budget) {
		budget = params.MaxChars
	}

	b := fitBudget(paths, moreFiles, sections, budget)
	b.ProjectID = projectID
	b.Task = task
	s.metrics.ContextAssembled(string(task), b.Truncated, b.Length)
	return b, nil
}

func sectionKey(path string, ordinal int) string {
	return fmt.Sprintf("%s\x00%d", path, ordinal)
}

// fitBudget renders the bundle, dropping content until it fits: similar
// sections by ascending score, then critical sections from the end, then
// tree lines from the end, then a hard cut of the text.
func fitBudget(paths []string, moreFiles bool, sections []domain.ContextSection, budget int) *domain.ContextBundle {
	paths = slices.Clone(paths)
	sections = slices.Clone(sections)
	b := &domain.ContextBundle{MaxChars: budget}

	tree := renderTree(paths, moreFiles)
	length := len(tree)
	for _, sec := range sections {
		length += sectionLen(sec)
	}

	for budget > 0 && length > budget {
		if i := lowestSimilar(sections); i >= 0 {
			length -= sectionLen(sections[i])
			sections = slices.Delete(sections, i, i+1)
			b.Dropped++
			continue
		}
		if n := len(sections); n > 0 {
			length -= sectionLen(sections[n-1])
			sections = sections[:n-1]
			b.Dropped++
			continue
		}
		if moreFiles || len(paths) > 0 {
			if moreFiles {
				moreFiles = false
			} else {
				paths = paths[:len(paths)-1]
			}
			b.Truncated = true
			tree = renderTree(paths, moreFiles)
			length = len(tree)
			continue
		}
		break
	}

	var sb strings.Builder
	sb.WriteString(tree)
	for _, sec := range sections {
		writeSection(&sb, sec)
	}
	text := sb.String()
	if budget > 0 && len(text) > budget {
		text = cutAtRune(text, budget)
		b.Truncated = true
	}

	b.FileTree = tree
	b.Paths = paths
	b.Sections = sections
	b.Text = text
	b.Length = len(text)
	b.Truncated = b.Truncated || b.Dropped > 0
	return b
}

// lowestSimilar returns the index of the similar section with the lowest
// score, preferring the later one on ties, or -1.
func lowestSimilar(sections []domain.ContextSection) int {
	idx := -1
	for i, s := range sections {
		if s.Source != domain.SourceSimilar {
			continue
		}
		if idx < 0 || s.Score <= sections[idx].Score {
			idx = i
		}
	}
	return idx
}

func renderTree(paths []string, moreFiles bool) string {
	var sb strings.Builder
	sb.WriteString(treeHeader)
	for _, p := range paths {
		sb.WriteString(p)
		sb.WriteByte('\n')
	}
	if moreFiles {
		sb.WriteString(treeMoreLine)
	}
	return sb.String()
}

func writeSection(sb *strings.Builder, s domain.ContextSection) {
	sb.WriteByte('\n')
	sb.WriteString(s.Heading())
	sb.WriteByte('\n')
	sb.WriteString(s.Content)
	if !strings.HasSuffix(s.Content, "\n") {
		sb.WriteByte('\n')
	}
}

func sectionLen(s domain.ContextSection) int {
	var sb strings.Builder
	writeSection(&sb, s)
	return sb.Len()
}

// cutAtRune truncates s to at most n bytes without splitting a rune.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
