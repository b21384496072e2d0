package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

var skipDirs = map[string]bool{
	"node_modules": true, "vendor": true, "dist": true, "build": true,
	"target": true, "__pycache__": true,
}

var skipExts = map[string]bool{
	// Images
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true, ".svg": true, ".webp": true, ".tiff": true,
	// Video/Audio
	".mp4": true, ".avi": true, ".mov": true, ".mp3": true, ".wav": true, ".flac": true, ".ogg": true, ".webm": true,
	// Fonts
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
	// Archives
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true, ".rar": true, ".jar": true, ".war": true,
	// Compiled
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".o": true, ".a": true, ".class": true, ".pyc": true, ".wasm": true,
	".lock": true,
	// Documents and data
	".sqlite": true, ".db": true, ".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true,
	".map": true,
}

var skipFiles = map[string]bool{
	"package-lock.json": true, "yarn.lock": true, "pnpm-lock.yaml": true,
	"go.sum": true, "Cargo.lock": true, "Gemfile.lock": true,
	"composer.lock": true, "poetry.lock": true, "Pipfile.lock": true,
}

// WalkerConfig bounds a repository walk.
type WalkerConfig struct {
	MaxFiles         int
	MaxFileBytes     int64
	FetchConcurrency int
}

// WalkResult is the outcome of a walk. Files are in selection order.
type WalkResult struct {
	Found    int
	Eligible int
	Selected int
	// Truncated reports that the host returned an incomplete listing.
	Truncated bool
	Files     []domain.FetchedFile
	Skipped   []domain.FileReport
}

// Walker selects and fetches at most MaxFiles textual files of a repository.
type Walker struct {
	fetcher port.SourceFetcher
	cfg     WalkerConfig
}

// NewWalker creates a walker over fetcher.
func NewWalker(fetcher port.SourceFetcher, cfg WalkerConfig) *Walker {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 4
	}
	return &Walker{fetcher: fetcher, cfg: cfg}
}

// Eligible reports whether a listed file may be ingested.
func (w *Walker) Eligible(f domain.FileEntry) bool {
	if w.cfg.MaxFileBytes > 0 && f.Size > w.cfg.MaxFileBytes {
		return false
	}
	dir, base := path.Split(f.Path)
	if skipFiles[base] || skipExts[strings.ToLower(path.Ext(base))] {
		return false
	}
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		if skipDirs[part] || strings.HasPrefix(part, ".") {
			return false
		}
	}
	return true
}

// Select filters eligible files and returns the first n in byte-wise path order.
// n <= 0 selects every eligible file.
func (w *Walker) Select(files []domain.FileEntry, n int) (selected []domain.FileEntry, eligible int) {
	for _, f := range files {
		if w.Eligible(f) {
			selected = append(selected, f)
		}
	}
	slices.SortFunc(selected, func(a, b domain.FileEntry) int { return cmp.Compare(a.Path, b.Path) })
	eligible = len(selected)
	if n > 0 && len(selected) > n {
		selected = selected[:n]
	}
	return selected, eligible
}

// Walk lists the repository, selects at most maxFiles files (the configured
// ceiling when maxFiles <= 0) and fetches them concurrently. Listing errors are
// returned unchanged, except a truncated listing, which is walked and flagged.
// Per-file failures are reported in Skipped.
func (w *Walker) Walk(ctx context.Context, ref domain.RepoRef, credential string, maxFiles int) (*WalkResult, error) {
	if maxFiles <= 0 || (w.cfg.MaxFiles > 0 && maxFiles > w.cfg.MaxFiles) {
		maxFiles = w.cfg.MaxFiles
	}

	listed, err := w.fetcher.ListFiles(ctx, ref, credential)
	truncated := errors.Is(err, port.ErrListingTruncated)
	if err != nil && !truncated {
		return nil, err
	}

	selected, eligible := w.Select(listed, maxFiles)
	slog.Info("repository walk", "repo", ref.String(), "found", len(listed), "eligible", eligible, "selected", len(selected))

	type outcome struct {
		content string
		err     error
	}
	outcomes := make([]outcome, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.FetchConcurrency)
	for i, f := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := w.fetcher.FetchFile(gctx, ref, credential, f.Path)
			outcomes[i] = outcome{content: content, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("walk %s: %w", ref, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("walk %s: %w", ref, err)
	}

	res := &WalkResult{Found: len(listed), Eligible: eligible, Selected: len(selected), Truncated: truncated}
	for i, f := range selected {
		o := outcomes[i]
		switch {
		case o.err != nil:
			slog.Warn("skipping file", "repo", ref.String(), "path", f.Path, "error", o.err)
			res.Skipped = append(res.Skipped, skippedReport(f, o.err.Error()))
		case !utf8.ValidString(o.content):
			slog.Warn("skipping non-utf8 file", "repo", ref.String(), "path", f.Path)
			res.Skipped = append(res.Skipped, skippedReport(f, "content is not valid UTF-8"))
		default:
			if f.Language == "" {
				f.Language = domain.DetectLanguage(f.Path)
			}
			res.Files = append(res.Files, domain.FetchedFile{FileEntry: f, Content: o.content})
		}
	}
	return res, nil
}

func skippedReport(f domain.FileEntry, reason string) domain.FileReport {
	return domain.FileReport{Path: f.Path, Size: f.Size, Language: f.Language, Skipped: true, Error: reason}
}
