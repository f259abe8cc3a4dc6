package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"corpuscrawler/internal/extract"
)

func TestManagerNumbersArticlesFromOne(t *testing.T) {
	t.Parallel()

	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	first, err := m.Save("first article", extract.ArticleMeta{URL: "https://a.test/1", Title: "One"})
	require.NoError(t, err)
	require.Equal(t, 1, first)

	second, err := m.Save("second article", extract.ArticleMeta{URL: "https://a.test/2", Title: "Two"})
	require.NoError(t, err)
	require.Equal(t, 2, second)

	text, err := m.LoadRaw(1)
	require.NoError(t, err)
	require.Equal(t, "first article", text)

	meta, err := m.LoadMeta(2)
	require.NoError(t, err)
	require.Equal(t, 2, meta.ID)
	require.Equal(t, "Two", meta.Title)
}

func TestManagerResumesNumerationOnReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, err := NewManager(dir, nil)
	require.NoError(t, err)
	_, err = m.Save("one", extract.ArticleMeta{URL: "https://a.test/1"})
	require.NoError(t, err)

	reopened, err := NewManager(dir, nil)
	require.NoError(t, err)
	id, err := reopened.Save("two", extract.ArticleMeta{URL: "https://a.test/2"})
	require.NoError(t, err)
	require.Equal(t, 2, id)
}

func TestManagerRoundTripsPOSFrequencies(t *testing.T) {
	t.Parallel()

	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	id, err := m.Save("text", extract.ArticleMeta{URL: "https://a.test/1"})
	require.NoError(t, err)

	meta, err := m.LoadMeta(id)
	require.NoError(t, err)
	meta.POSFrequencies = map[string]int{"NN": 4, "VB": 2}
	require.NoError(t, m.SaveMeta(meta))

	reloaded, err := m.LoadMeta(id)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"NN": 4, "VB": 2}, reloaded.POSFrequencies)
}

func TestValidateDatasetAcceptsContinuousNumeration(t *testing.T) {
	t.Parallel()

	m, err := NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := m.Save("text", extract.ArticleMeta{URL: "https://a.test/"})
		require.NoError(t, err)
	}
	require.NoError(t, m.Validate())
}

func TestValidateDatasetRejectsGap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, err := NewManager(dir, nil)
	require.NoError(t, err)
	_, err = m.Save("text", extract.ArticleMeta{URL: "https://a.test/1"})
	require.NoError(t, err)
	_, err = m.Save("text", extract.ArticleMeta{URL: "https://a.test/2"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(m.RawPath(1)))
	require.NoError(t, os.Remove(m.MetaPath(1)))

	err = ValidateDataset(dir)
	require.ErrorIs(t, err, ErrInvalidDataset)
}

func TestValidateDatasetRejectsMissingMeta(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, err := NewManager(dir, nil)
	require.NoError(t, err)
	_, err = m.Save("text", extract.ArticleMeta{URL: "https://a.test/1"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(m.MetaPath(1)))
	require.ErrorIs(t, ValidateDataset(dir), ErrInvalidDataset)
}

func TestValidateDatasetRejectsEmptyRaw(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, err := NewManager(dir, nil)
	require.NoError(t, err)
	_, err = m.Save("text", extract.ArticleMeta{URL: "https://a.test/1"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "1_raw.txt"), nil, 0o644))
	require.ErrorIs(t, ValidateDataset(dir), ErrInvalidDataset)
}

func TestManagerWritesProcessedRenditions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, err := NewManager(dir, nil)
	require.NoError(t, err)
	id, err := m.Save("Plain text.", extract.ArticleMeta{URL: "https://a.test/1"})
	require.NoError(t, err)

	require.NoError(t, m.SaveCleaned(id, "plain text"))
	require.NoError(t, m.SaveTagged(id, "plain<NN> text<NN>"))

	cleaned, err := os.ReadFile(filepath.Join(dir, "1_cleaned.txt"))
	require.NoError(t, err)
	require.Equal(t, "plain text", string(cleaned))

	tagged, err := os.ReadFile(filepath.Join(dir, "1_tagged.txt"))
	require.NoError(t, err)
	require.Equal(t, "plain<NN> text<NN>", string(tagged))
}
