package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateRejectsBlankQuestion(t *testing.T) {
	_, err := NewState("run-1", "   ", nil)
	require.ErrorIs(t, err, ErrEmptyQuestion)

	st, err := NewState("run-1", "  What is agent memory? ", nil)
	require.NoError(t, err)
	assert.Equal(t, "What is agent memory?", st.Question)
}

func TestApplyMergeModes(t *testing.T) {
	st, err := NewState("run-1", "q", nil)
	require.NoError(t, err)

	a := NewPassage("a", "alpha", map[string]any{MetaSource: "s1"})
	b := NewPassage("b", "beta", map[string]any{MetaSource: "s2"})
	c := NewPassage("c", "gamma", map[string]any{MetaSource: "s3"})

	st.Apply(Update{Node: NodeRetrieve, Documents: []Passage{a, b, c}, Merge: MergeAppend})
	assert.Len(t, st.Documents, 3)

	ws := true
	st.Apply(Update{Node: NodeGradeDocuments, Documents: []Passage{b}, Merge: MergeReplace, WebSearch: &ws})
	assert.Equal(t, []Passage{b}, st.Documents)
	assert.True(t, st.WebSearch)

	web := NewPassage("w", "web text", map[string]any{MetaSource: WebSearchSource})
	st.Apply(Update{Node: NodeWebSearch, Documents: []Passage{web}, Merge: MergeAppend})
	assert.Equal(t, []Passage{b, web}, st.Documents)
	assert.Equal(t, 1, st.WebSearches)

	gen := "first"
	st.Apply(Update{Node: NodeGenerate, Generation: &gen})
	gen2 := "second"
	st.Apply(Update{Node: NodeGenerate, Generation: &gen2})
	assert.Equal(t, "second", st.Generation)
	assert.Equal(t, 2, st.Generations)
	assert.Len(t, st.Documents, 2)
}

func TestApplyReplaceWithEmptyClearsDocuments(t *testing.T) {
	st := &State{Question: "q", Documents: []Passage{NewPassage("a", "x", nil)}}
	st.Apply(Update{Node: NodeGradeDocuments, Documents: nil, Merge: MergeReplace})
	assert.Empty(t, st.Documents)
}

func TestPassageDefaultsSourceAndCopiesMetadata(t *testing.T) {
	md := map[string]any{MetaTitle: "Agents"}
	p := NewPassage("id", "content", md)
	md[MetaTitle] = "mutated"

	assert.Equal(t, UnknownSource, p.Source())
	assert.Equal(t, "Agents", p.Title())

	out := p.Metadata()
	out[MetaSource] = "changed"
	assert.Equal(t, UnknownSource, p.Source())
}

func TestCloneIsolatesDocuments(t *testing.T) {
	st := &State{Question: "q", Documents: []Passage{NewPassage("a", "x", nil)}}
	cp := st.Clone()
	cp.Documents = append(cp.Documents, NewPassage("b", "y", nil))
	assert.Len(t, st.Documents, 1)
}

func TestSourcesDeduplicatesInOrder(t *testing.T) {
	st := &State{Documents: []Passage{
		NewPassage("1", "a", map[string]any{MetaSource: "u1"}),
		NewPassage("2", "b", map[string]any{MetaSource: "u2"}),
		NewPassage("3", "c", map[string]any{MetaSource: "u1"}),
	}}
	assert.Equal(t, []string{"u1", "u2"}, st.Sources())
}
