package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dvloznov/smart-ledger/internal/config"
	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/dvloznov/smart-ledger/internal/logger"
	"github.com/dvloznov/smart-ledger/internal/textextract"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// maxLoggedError bounds error text written to chunk failure logs.
const maxLoggedError = 300

// Extracted is a candidate together with where it came from.
type Extracted struct {
	domain.Candidate
	Kind  domain.RawKind
	Chunk *int
}

// ChunkStats summarizes one chunked extraction.
type ChunkStats struct {
	Total      int
	Skipped    int
	Failed     int
	Succeeded  int
	Candidates int
}

// Warning describes skipped or failed chunks, or returns nil when every
// chunk was processed.
func (s ChunkStats) Warning() *string {
	if s.Failed == 0 && s.Skipped == 0 {
		return nil
	}
	var parts []string
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d of %d chunks failed", s.Failed, s.Total))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d of %d chunks skipped (too few lines)", s.Skipped, s.Total))
	}
	w := strings.Join(parts, "; ")
	return &w
}

// SplitChunks cuts lines into consecutive chunks of at most size lines.
func SplitChunks(lines []string, size int) [][]string {
	if size <= 0 {
		size = 40
	}
	var chunks [][]string
	for start := 0; start < len(lines); start += size {
		end := start + size
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, lines[start:end])
	}
	return chunks
}

// Orchestrator fans statement text out to the extraction capability.
type Orchestrator struct {
	cfg       config.Pipeline
	extractor CandidateExtractor
	log       zerolog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg config.Pipeline, extractor CandidateExtractor, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, extractor: extractor, log: log}
}

// ExtractChunked splits lines into chunks and extracts them with a fixed
// pool of workers. Chunks below MinSignalLines are skipped. A failing
// chunk is logged and skipped without affecting the others. The order of
// the result is unspecified. The error is non-nil only if ctx ends.
func (o *Orchestrator) ExtractChunked(ctx context.Context, jobID string, lines []string) ([]Extracted, ChunkStats, error) {
	chunks := SplitChunks(lines, o.cfg.ChunkLines)
	stats := ChunkStats{Total: len(chunks)}
	if len(chunks) == 0 {
		return nil, stats, nil
	}

	workers := o.cfg.ChunkConcurrency
	if workers > len(chunks) {
		workers = len(chunks)
	}
	if workers < 1 {
		workers = 1
	}

	indices := make(chan int, len(chunks))
	for i := range chunks {
		indices <- i
	}
	close(indices)

	var (
		mu      sync.Mutex
		results []Extracted
	)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		worker := w
		g.Go(func() error {
			for idx := range indices {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				chunk := chunks[idx]
				if len(chunk) < o.cfg.MinSignalLines {
					mu.Lock()
					stats.Skipped++
					mu.Unlock()
					continue
				}

				cands, err := o.extractChunk(ctx, strings.Join(chunk, "\n"))
				if err != nil {
					log := logger.WithFields(o.log, map[string]interface{}{
						"job_id": jobID,
						"chunk":  idx,
						"worker": worker,
					})
					log.Warn().
						Str("error", domain.Truncate(err.Error(), maxLoggedError)).
						Msg("Chunk extraction failed, skipping")
					mu.Lock()
					stats.Failed++
					mu.Unlock()
					continue
				}

				chunkIdx := idx
				mu.Lock()
				for _, c := range cands {
					results = append(results, Extracted{Candidate: c, Kind: domain.RawKindChunk, Chunk: &chunkIdx})
				}
				stats.Succeeded++
				stats.Candidates += len(cands)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, stats, fmt.Errorf("ExtractChunked: %w", err)
	}

	o.log.Info().
		Str("job_id", jobID).
		Int("chunks", stats.Total).
		Int("workers", workers).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Int("candidates", stats.Candidates).
		Msg("Chunked extraction finished")
	return results, stats, nil
}

// extractChunk reports a panic in the extractor as a chunk failure.
func (o *Orchestrator) extractChunk(ctx context.Context, text string) (cands []domain.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chunk extraction panicked: %v", r)
		}
	}()
	return o.extractor.Extract(ctx, text)
}

// ExtractFull sends the whole document text, capped at PDFTextCap runes,
// in a single call. Any failure is returned.
func (o *Orchestrator) ExtractFull(ctx context.Context, jobID, text string) ([]Extracted, error) {
	capped := textextract.Truncate(text, o.cfg.PDFTextCap)
	if len([]rune(capped)) < len([]rune(text)) {
		o.log.Info().Str("job_id", jobID).Int("cap", o.cfg.PDFTextCap).Msg("Document text truncated")
	}

	cands, err := o.extractor.Extract(ctx, capped)
	if err != nil {
		return nil, fmt.Errorf("ExtractFull: %w", err)
	}

	out := make([]Extracted, 0, len(cands))
	for _, c := range cands {
		out = append(out, Extracted{Candidate: c, Kind: domain.RawKindFullText})
	}
	return out, nil
}
