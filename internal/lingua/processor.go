package lingua

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"corpuscrawler/internal/corpus"
)

// Processor runs the linguistic analysis over every stored article: it writes
// the cleaned and tagged renditions and merges the part-of-speech frequency
// profile into each article's metadata.
type Processor struct {
	manager  *corpus.Manager
	analyzer *Analyzer
	logger   *zap.Logger
}

// NewProcessor builds a Processor over the given dataset.
func NewProcessor(manager *corpus.Manager, analyzer *Analyzer, logger *zap.Logger) *Processor {
	if analyzer == nil {
		analyzer = NewAnalyzer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{manager: manager, analyzer: analyzer, logger: logger}
}

// Run validates the dataset and processes each article in order. It stops
// early when the context is canceled.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.manager.Validate(); err != nil {
		return fmt.Errorf("dataset validation before processing: %w", err)
	}
	ids, err := p.manager.IDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("processing interrupted: %w", err)
		}
		if err := p.processArticle(id); err != nil {
			return err
		}
	}
	p.logger.Info("linguistic processing finished", zap.Int("articles", len(ids)))
	return nil
}

func (p *Processor) processArticle(id int) error {
	raw, err := p.manager.LoadRaw(id)
	if err != nil {
		return err
	}
	tokens, err := p.analyzer.Analyze(raw)
	if err != nil {
		return fmt.Errorf("article %d: %w", id, err)
	}
	if err := p.manager.SaveCleaned(id, Cleaned(tokens)); err != nil {
		return err
	}
	if err := p.manager.SaveTagged(id, Tagged(tokens)); err != nil {
		return err
	}

	meta, err := p.manager.LoadMeta(id)
	if err != nil {
		return err
	}
	meta.POSFrequencies = POSFrequencies(tokens)
	if err := p.manager.SaveMeta(meta); err != nil {
		return err
	}

	p.logger.Debug("article processed",
		zap.Int("id", id),
		zap.Int("tokens", len(tokens)),
	)
	return nil
}
