package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akimixu/mksearch/internal/models"
)

func TestTerminal(t *testing.T) {
	assert.True(t, TypeComplete.Terminal())
	assert.True(t, TypeStopped.Terminal())
	assert.True(t, TypeError.Terminal())
	assert.False(t, TypeStart.Terminal())
	assert.False(t, TypeProgress.Terminal())
	assert.False(t, TypeResultItem.Terminal())
}

func TestEventJSONShape(t *testing.T) {
	ev := Result(&models.MatchResult{FileName: "a.go", MatchedKeywords: []string{"x"}},
		ResultProgress{Current: 1, Processed: 3, TotalFiles: 10})
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "searchResultItem", m["type"])
	assert.NotContains(t, m, "message")
	progress := m["progress"].(map[string]any)
	assert.EqualValues(t, 1, progress["current"])
	assert.EqualValues(t, 3, progress["processed"])
	assert.EqualValues(t, 10, progress["totalFiles"])
	assert.Equal(t, "a.go", m["data"].(map[string]any)["fileName"])
}

func TestMultiAndRecorder(t *testing.T) {
	var a, b Recorder
	s := Multi(&a, nil, &b)
	s.Emit(Start("go"))
	s.Emit(Complete("done"))
	assert.Equal(t, []Type{TypeStart, TypeComplete}, a.Types())
	assert.Equal(t, a.Events(), b.Events())
}

func TestChanSink(t *testing.T) {
	c := NewChanSink(1)
	c.Emit(Start("go"))
	assert.Equal(t, TypeStart, (<-c.C()).Type)

	blocked := make(chan struct{})
	c.Emit(Progress("p", BatchProgress{}))
	go func() {
		c.Emit(Complete("done"))
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("emit should block on a full buffer")
	case <-time.After(50 * time.Millisecond):
	}

	c.Close()
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("close did not release the blocked emit")
	}
	c.Emit(Error("dropped"))
	c.Close()
}
