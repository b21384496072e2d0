package service

import (
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/arturoeanton/stackmemory/internal/domain"
)

// Chunker splits file content into line-aligned chunks of at most Size bytes.
// Size <= 0 disables splitting.
type Chunker struct {
	Size int
}

// Chunks returns a lazy, restartable sequence of chunks. Whole lines are
// packed greedily; a line longer than Size is cut at rune boundaries.
// Concatenating the chunk contents yields content exactly.
func (c Chunker) Chunks(filePath, content string) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		if content == "" {
			return
		}

		ordinal := 0
		line := 1 // line of the first byte of the pending chunk
		emit := func(start, end int) bool {
			text := content[start:end]
			newlines := strings.Count(text[:len(text)-1], "\n")
			ch := domain.Chunk{
				FilePath:  filePath,
				Ordinal:   ordinal,
				Content:   text,
				StartByte: start,
				EndByte:   end,
				StartLine: line,
				EndLine:   line + newlines,
			}
			ordinal++
			line += newlines
			if text[len(text)-1] == '\n' {
				line++
			}
			return yield(ch)
		}

		size := c.Size
		if size <= 0 || len(content) <= size {
			emit(0, len(content))
			return
		}

		start, pos := 0, 0
		for pos < len(content) {
			lineEnd := len(content)
			if i := strings.IndexByte(content[pos:], '\n'); i >= 0 {
				lineEnd = pos + i + 1
			}
			if lineEnd-start <= size {
				pos = lineEnd
				continue
			}
			if pos > start {
				if !emit(start, pos) {
					return
				}
				start = pos
			}
			for lineEnd-start > size {
				cut := start + size
				for cut > start && !utf8.RuneStart(content[cut]) {
					cut--
				}
				if cut == start {
					// size is smaller than the rune at start; keep the rune whole.
					_, n := utf8.DecodeRuneInString(content[start:])
					cut = start + n
				}
				if !emit(start, cut) {
					return
				}
				start = cut
			}
			pos = lineEnd
		}
		if start < len(content) {
			emit(start, len(content))
		}
	}
}

// Collect drains the sequence into a slice.
func (c Chunker) Collect(filePath, content string) []domain.Chunk {
	var out []domain.Chunk
	for ch := range c.Chunks(filePath, content) {
		out = append(out, ch)
	}
	return out
}
