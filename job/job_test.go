package job

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries(kv ...string) *Entries {
	e := NewEntries()
	for i := 0; i+1 < len(kv); i += 2 {
		e.Set(kv[i], kv[i+1])
	}
	return e
}

func TestEntriesOrder(t *testing.T) {
	e := entries("b", "2", "a", "1", "c", "3")
	e.Set("a", "one")

	assert.Equal(t, []string{"b", "a", "c"}, e.Keys())
	v, ok := e.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "one", v)
	assert.Equal(t, 3, e.Len())
}

func TestEntriesFromMapSorted(t *testing.T) {
	e := EntriesFromMap(map[string]string{"z": "1", "a": "2", "m": "3"})
	assert.Equal(t, []string{"a", "m", "z"}, e.Keys())
}

func TestEntriesJSONKeepsOrder(t *testing.T) {
	e := entries("item.b", "B", "item.a", "A \"quoted\"")
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Equal(t, `{"item.b":"B","item.a":"A \"quoted\""}`, string(data))

	var back Entries
	require.NoError(t, json.Unmarshal([]byte(`{"y":"1","x":"2"}`), &back))
	assert.Equal(t, []string{"y", "x"}, back.Keys())
}

func TestEntriesUnmarshalRejectsNonString(t *testing.T) {
	var e Entries
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &e))
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &e))
}

func TestEntriesSlice(t *testing.T) {
	e := entries("a", "1", "b", "2", "c", "3")
	s := e.Slice(1, 10)
	assert.Equal(t, []string{"b", "c"}, s.Keys())
}

func TestNilEntries(t *testing.T) {
	var e *Entries
	assert.Equal(t, 0, e.Len())
	assert.Empty(t, e.Keys())
	assert.Empty(t, e.Map())
	_, ok := e.Get("x")
	assert.False(t, ok)
}

func TestNewJobChunks(t *testing.T) {
	j := New("job1", "ja_jp", []*Entries{entries("a", "1"), entries("b", "2")})

	assert.Equal(t, StatusPending, j.Status)
	assert.Equal(t, 2, j.TotalChunks)
	require.Len(t, j.Chunks, 2)
	assert.Equal(t, "job1_chunk_0", j.Chunks[0].ID)
	assert.Equal(t, "job1_chunk_1", j.Chunks[1].ID)
	assert.Equal(t, ChunkPending, j.Chunks[1].Status)
	assert.Equal(t, 2, j.TotalEntries())
}

func TestNewJobEmptyIsCompleted(t *testing.T) {
	j := New("empty", "ja_jp", nil)
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, 100, j.Progress)
	assert.Equal(t, 0, j.TotalChunks)
	assert.NotZero(t, j.EndTime)
	assert.Equal(t, 0, j.CombinedTranslatedContent().Len())
}

func TestJobLifecycleCompleted(t *testing.T) {
	j := New("j", "ja_jp", []*Entries{entries("a", "1"), entries("b", "2")})
	j.Start()
	assert.Equal(t, StatusProcessing, j.Status)
	assert.NotZero(t, j.StartTime)

	j.Chunks[0].Begin()
	j.Chunks[0].Complete(entries("a", "いち"))
	j.UpdateProgress()
	assert.Equal(t, 50, j.Progress)

	j.Chunks[1].Begin()
	j.Chunks[1].Complete(entries("b", "に"))
	j.Finish()

	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, 100, j.Progress)
	assert.GreaterOrEqual(t, j.EndTime, j.StartTime)
}

func TestJobFinishFailedWhenAnyChunkFailed(t *testing.T) {
	j := New("j", "ja_jp", []*Entries{entries("a", "1"), entries("b", "2")})
	j.Start()
	j.Chunks[0].Complete(entries("a", "いち"))
	j.Chunks[1].Fail(errors.New("boom"))
	j.Finish()

	assert.Equal(t, StatusFailed, j.Status)
	assert.Equal(t, 100, j.Progress)
	assert.Equal(t, "boom", j.Chunks[1].Error)
	assert.Nil(t, j.Chunks[1].TranslatedContent)
	assert.Equal(t, map[string]string{"a": "いち"}, j.CombinedTranslatedContent().Map())
}

func TestTerminalStatusIsFinal(t *testing.T) {
	j := New("j", "ja_jp", []*Entries{entries("a", "1")})
	j.Start()
	j.Interrupt()
	assert.Equal(t, StatusInterrupted, j.Status)

	j.Finish()
	assert.Equal(t, StatusInterrupted, j.Status)
	j.Start()
	assert.Equal(t, StatusInterrupted, j.Status)
	assert.Equal(t, ChunkPending, j.Chunks[0].Status)
}

func TestCombinedTranslatedContentIdempotent(t *testing.T) {
	j := New("j", "ja_jp", []*Entries{entries("a", "1", "b", "2"), entries("c", "3"), entries("d", "4")})
	j.Chunks[0].Complete(entries("a", "A", "b", "B"))
	j.Chunks[1].Fail(errors.New("x"))
	j.Chunks[2].Complete(entries("d", "D"))

	first := j.CombinedTranslatedContent()
	second := j.CombinedTranslatedContent()
	assert.Equal(t, []string{"a", "b", "d"}, first.Keys())
	assert.Equal(t, first.Map(), second.Map())
	assert.Equal(t, first.Keys(), second.Keys())
}

func TestPlaceholderKeys(t *testing.T) {
	j := New("j", "ja_jp", []*Entries{entries("a", "1", "b", "2"), entries("c", "3"), entries("d", "4")})
	j.Chunks[0].Complete(entries("a", "A", "b", "[ja_jp] 2"), "b")
	j.Chunks[1].Complete(entries("c", "[ja_jp] 3"), "c")
	j.Chunks[1].Fail(errors.New("retry later"))
	j.Chunks[2].Complete(entries("d", "D"))

	assert.Nil(t, j.Chunks[1].Placeholders, "a failed chunk keeps no placeholders")
	assert.Equal(t, []string{"b"}, j.PlaceholderKeys())

	r := Result{Content: j.CombinedTranslatedContent(), Placeholders: j.PlaceholderKeys()}
	assert.Equal(t, []string{"a", "d"}, r.Translated().Keys())
	assert.Equal(t, []string{"a", "b", "d"}, r.Content.Keys(), "Translated leaves Content untouched")

	full := Result{Content: entries("x", "X")}
	assert.Same(t, full.Content, full.Translated())
}

func TestParseDomain(t *testing.T) {
	d, err := ParseDomain("quest")
	require.NoError(t, err)
	assert.Equal(t, DomainQuest, d)

	_, err = ParseDomain("jar")
	assert.Error(t, err)
}
