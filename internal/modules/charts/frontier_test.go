package charts

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/simulation"
)

func sampleResults() []simulation.Result {
	return []simulation.Result{
		{Sharpe: 0.4, Return: 0.08, Volatility: 0.15},
		{Sharpe: 0.9, Return: 0.12, Volatility: 0.11},
		{Sharpe: 0.6, Return: 0.10, Volatility: 0.13},
	}
}

func TestFrontier_Best(t *testing.T) {
	f := NewFrontier("")
	_, ok := f.Best()
	assert.False(t, ok)

	for _, r := range sampleResults() {
		f.Add(r)
	}
	best, ok := f.Best()
	require.True(t, ok)
	assert.Equal(t, 0.9, best.Sharpe)
	assert.Equal(t, DefaultTitle, f.Title)
	assert.Equal(t, 3, f.Len())
}

func TestFrontier_RenderPNG(t *testing.T) {
	f := NewFrontier("test")
	for _, r := range sampleResults() {
		f.Add(r)
	}

	var buf bytes.Buffer
	require.NoError(t, f.Render(&buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
	assert.Equal(t, DefaultHeight, img.Bounds().Dy())
}

func TestFrontier_RenderIdenticalPoints(t *testing.T) {
	f := NewFrontier("single asset")
	for i := 0; i < 5; i++ {
		f.Add(simulation.Result{Sharpe: 0.5, Return: 0.1, Volatility: 0.2})
	}
	assert.NoError(t, f.Render(&bytes.Buffer{}))
}

func TestFrontier_RenderEmpty(t *testing.T) {
	err := NewFrontier("").Render(&bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestSink(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "frontier.png")
	s := NewSink(path, "")
	require.NoError(t, s.Begin([]string{"A", "B"}))
	for _, r := range sampleResults() {
		require.NoError(t, s.Write(r))
	}
	require.NoError(t, s.Commit())
	assert.True(t, s.Written())
	_, err := os.Stat(path)
	assert.NoError(t, err)

	empty := NewSink(filepath.Join(dir, "empty.png"), "")
	require.NoError(t, empty.Begin([]string{"A"}))
	require.NoError(t, empty.Commit())
	assert.False(t, empty.Written())
	_, err = os.Stat(empty.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestSink_PrepareDoesNotPublish(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frontier.png")

	s := NewSink(path, "")
	require.NoError(t, s.Begin([]string{"A", "B"}))
	for _, r := range sampleResults() {
		require.NoError(t, s.Write(r))
	}
	require.NoError(t, s.Prepare())
	assert.NoFileExists(t, path)

	require.NoError(t, s.Abort())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSink_Revert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frontier.png")

	s := NewSink(path, "")
	require.NoError(t, s.Begin([]string{"A", "B"}))
	for _, r := range sampleResults() {
		require.NoError(t, s.Write(r))
	}
	require.NoError(t, s.Commit())
	assert.FileExists(t, path)

	require.NoError(t, s.Revert())
	assert.NoFileExists(t, path)
	assert.False(t, s.Written())
}
