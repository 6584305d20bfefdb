package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()
	h := NewHistory(filepath.Join(t.TempDir(), "history.json"), zerolog.Nop())
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func TestHistoryNewestFirst(t *testing.T) {
	h := newTestHistory(t)
	h.Add("первое")
	h.Add("второе")
	h.Add("третье")

	entries := h.Recent(2)
	require.Len(t, entries, 2)
	assert.Equal(t, "третье", entries[0].Action)
	assert.Equal(t, "второе", entries[1].Action)
	assert.Equal(t, "01.05.2024 12:00:00", entries[0].Timestamp)
}

func TestHistoryCapped(t *testing.T) {
	h := newTestHistory(t)
	for i := 0; i < historyLimit+5; i++ {
		h.Add(fmt.Sprintf("действие %d", i))
	}

	entries := h.Recent(historyLimit + 5)
	require.Len(t, entries, historyLimit)
	assert.Equal(t, fmt.Sprintf("действие %d", historyLimit+4), entries[0].Action)
}

func TestHistoryCorruptFileStartsOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{битый"), 0644))

	h := NewHistory(path, zerolog.Nop())
	assert.Empty(t, h.Recent(10))

	h.Add("после сбоя")
	entries := h.Recent(10)
	require.Len(t, entries, 1)
	assert.Equal(t, "после сбоя", entries[0].Action)
}

func TestHistoryRecentMoreThanStored(t *testing.T) {
	h := newTestHistory(t)
	h.Add("единственное")
	assert.Len(t, h.Recent(50), 1)
}

func TestHistoryRecentNonPositive(t *testing.T) {
	h := newTestHistory(t)
	h.Add("единственное")
	assert.Empty(t, h.Recent(0))
	assert.Empty(t, h.Recent(-5))
}
