package search

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akimixu/mksearch/internal/models"
	"github.com/akimixu/mksearch/internal/scan"
	"github.com/akimixu/mksearch/internal/storage"
	"github.com/akimixu/mksearch/internal/testutil"
)

func candidate(t *testing.T, store *storage.FS, rel string) models.Candidate {
	t.Helper()
	ref, err := store.Resolve(rel)
	require.NoError(t, err)
	return models.Candidate{FileRef: ref}
}

func TestEvaluate_AllKeywordsRequired(t *testing.T) {
	_, store := testutil.TestWorkspace(t, map[string]string{
		"both.txt": "hello there\nbrave world",
		"one.txt":  "hello only",
	})
	ev := NewEvaluator(store, models.KeywordSpec{Keywords: []string{"hello", "world"}}, scan.Options{}, 0)

	res, err := ev.Evaluate(candidate(t, store, "both.txt"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "both.txt", res.FileName)
	assert.Equal(t, "both.txt", res.RelativePath)
	assert.Equal(t, []string{"hello", "world"}, res.MatchedKeywords)
	assert.Equal(t, []models.MatchPosition{{Line: 1, Character: 0, Text: "hello there"}}, res.KeywordPositions["hello"])
	assert.Equal(t, []models.MatchPosition{{Line: 2, Character: 6, Text: "brave world"}}, res.KeywordPositions["world"])
	assert.Equal(t, 2, res.TotalMatches)

	res, err = ev.Evaluate(candidate(t, store, "one.txt"))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestEvaluate_KeepsOriginalCasing(t *testing.T) {
	_, store := testutil.TestWorkspace(t, map[string]string{"a.txt": "foo and FOO"})

	insensitive := NewEvaluator(store, models.KeywordSpec{Keywords: []string{"Foo"}}, scan.Options{}, 0)
	res, err := insensitive.Evaluate(candidate(t, store, "a.txt"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"Foo"}, res.MatchedKeywords)
	assert.Len(t, res.KeywordPositions["Foo"], 2)

	sensitive := NewEvaluator(store, models.KeywordSpec{Keywords: []string{"Foo"}, CaseSensitive: true}, scan.Options{}, 0)
	res, err = sensitive.Evaluate(candidate(t, store, "a.txt"))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestEvaluate_WholeWordRejectsSubstringOnly(t *testing.T) {
	_, store := testutil.TestWorkspace(t, map[string]string{
		"category.txt": "category",
		"cat.txt":      "the cat sat",
	})
	ev := NewEvaluator(store, models.KeywordSpec{Keywords: []string{"cat"}, WholeWord: true}, scan.Options{}, 0)

	res, err := ev.Evaluate(candidate(t, store, "category.txt"))
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = ev.Evaluate(candidate(t, store, "cat.txt"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 4, res.KeywordPositions["cat"][0].Character)
}

func TestEvaluate_DuplicateKeywords(t *testing.T) {
	_, store := testutil.TestWorkspace(t, map[string]string{"a.txt": "x y x"})
	ev := NewEvaluator(store, models.KeywordSpec{Keywords: []string{"x", "x"}}, scan.Options{}, 0)

	res, err := ev.Evaluate(candidate(t, store, "a.txt"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"x", "x"}, res.MatchedKeywords)
	assert.Len(t, res.KeywordPositions, 1)
	assert.Equal(t, 2, res.TotalMatches)
}

func TestEvaluate_PositionCapStillQualifies(t *testing.T) {
	_, store := testutil.TestWorkspace(t, map[string]string{"x.txt": strings.Repeat("x ", 1000)})
	ev := NewEvaluator(store, models.KeywordSpec{Keywords: []string{"x"}}, scan.Options{}, 0)

	res, err := ev.Evaluate(candidate(t, store, "x.txt"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.KeywordPositions["x"], scan.DefaultMaxPositions)
}

func TestEvaluate_SkipsUnreadable(t *testing.T) {
	_, store := testutil.TestWorkspace(t, map[string]string{
		"bin.dat": "hello\x00world",
		"big.txt": "hello world",
	})
	ev := NewEvaluator(store, models.KeywordSpec{Keywords: []string{"hello"}}, scan.Options{}, 5)

	_, err := ev.Evaluate(candidate(t, store, "missing.txt"))
	assert.Error(t, err)

	_, err = ev.Evaluate(candidate(t, store, "big.txt"))
	assert.True(t, errors.Is(err, ErrTooLarge))

	noLimit := NewEvaluator(store, models.KeywordSpec{Keywords: []string{"hello"}}, scan.Options{}, 0)
	_, err = noLimit.Evaluate(candidate(t, store, "bin.dat"))
	assert.True(t, errors.Is(err, ErrBinary))
}

func TestEvaluate_StripsBOM(t *testing.T) {
	_, store := testutil.TestWorkspace(t, map[string]string{"bom.txt": "\xEF\xBB\xBFkey here"})
	ev := NewEvaluator(store, models.KeywordSpec{Keywords: []string{"key"}}, scan.Options{}, 0)

	res, err := ev.Evaluate(candidate(t, store, "bom.txt"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.KeywordPositions["key"][0].Character)
}
