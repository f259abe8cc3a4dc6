package lingua

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"corpuscrawler/internal/corpus"
	"corpuscrawler/internal/extract"
)

func TestProcessorWritesRenditionsAndFrequencies(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manager, err := corpus.NewManager(dir, nil)
	require.NoError(t, err)
	id, err := manager.Save(
		"Consumer prices rose sharply in August. Analysts expected a smaller increase.",
		extract.ArticleMeta{URL: "https://a.test/1", Title: "Prices"},
	)
	require.NoError(t, err)

	proc := NewProcessor(manager, nil, nil)
	require.NoError(t, proc.Run(context.Background()))

	cleaned, err := os.ReadFile(filepath.Join(dir, "1_cleaned.txt"))
	require.NoError(t, err)
	require.Contains(t, string(cleaned), "prices")
	require.NotContains(t, string(cleaned), ".")

	tagged, err := os.ReadFile(filepath.Join(dir, "1_tagged.txt"))
	require.NoError(t, err)
	require.Contains(t, string(tagged), "<")

	meta, err := manager.LoadMeta(id)
	require.NoError(t, err)
	require.NotEmpty(t, meta.POSFrequencies)

	total := 0
	for tag, count := range meta.POSFrequencies {
		require.NotEmpty(t, tag)
		require.Positive(t, count)
		total += count
	}
	require.Positive(t, total)
}

func TestProcessorFailsOnInvalidDataset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manager, err := corpus.NewManager(dir, nil)
	require.NoError(t, err)
	_, err = manager.Save("text", extract.ArticleMeta{URL: "https://a.test/1"})
	require.NoError(t, err)
	require.NoError(t, os.Remove(manager.MetaPath(1)))

	proc := NewProcessor(manager, nil, nil)
	require.ErrorIs(t, proc.Run(context.Background()), corpus.ErrInvalidDataset)
}

func TestProcessorStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	manager, err := corpus.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = manager.Save("text here", extract.ArticleMeta{URL: "https://a.test/1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	proc := NewProcessor(manager, nil, nil)
	require.ErrorIs(t, proc.Run(ctx), context.Canceled)
}
