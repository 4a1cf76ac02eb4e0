package framework

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeFilters(t *testing.T, mustMatch []string, mustNotMatch []string) RegexFilters {
	var f RegexFilters
	for _, p := range mustMatch {
		require.NoError(t, f.MustMatch.Set(p))
	}
	for _, p := range mustNotMatch {
		require.NoError(t, f.MustNotMatch.Set(p))
	}
	return f
}

func testIDOf(parts ...string) TestID {
	return TestID{Path: parts}
}

func TestRegexFiltersWithNoPatternsRunEverything(t *testing.T) {
	f := makeFilters(t, nil, nil)
	assert.True(t, f.AsFilter(testIDOf("anything at all")))
}

func TestRegexFiltersMustMatch(t *testing.T) {
	f := makeFilters(t, []string{"relocalization"}, nil)
	assert.True(t, f.AsFilter(testIDOf("relocalization", "happy path")))
	assert.False(t, f.AsFilter(testIDOf("tracking", "happy path")))
}

func TestRegexFiltersMustNotMatch(t *testing.T) {
	f := makeFilters(t, nil, []string{"slow"})
	assert.True(t, f.AsFilter(testIDOf("tracking", "quick check")))
	assert.False(t, f.AsFilter(testIDOf("tracking", "slow scenario")))
}

func TestRegexFiltersMultiplePatternsAreORed(t *testing.T) {
	f := makeFilters(t, []string{"^relocalization", "^tracking"}, nil)
	assert.True(t, f.AsFilter(testIDOf("relocalization", "x")))
	assert.True(t, f.AsFilter(testIDOf("tracking", "y")))
	assert.False(t, f.AsFilter(testIDOf("other", "z")))
}

func TestRegexFiltersMustNotMatchWinsOverMustMatch(t *testing.T) {
	f := makeFilters(t, []string{"relocalization"}, []string{"negative"})
	assert.True(t, f.AsFilter(testIDOf("relocalization", "positive case")))
	assert.False(t, f.AsFilter(testIDOf("relocalization", "negative case")))
}

func TestRegexFiltersMatchAgainstFullSlashJoinedID(t *testing.T) {
	f := makeFilters(t, []string{"^relocalization/accepts"}, nil)
	assert.True(t, f.AsFilter(testIDOf("relocalization", "accepts pose correction")))
	assert.False(t, f.AsFilter(testIDOf("relocalization", "rejects pose correction")))
}

func TestRegexListRejectsInvalidPattern(t *testing.T) {
	var l RegexList
	assert.Error(t, l.Set("(unclosed"))
}

func TestRegexListString(t *testing.T) {
	var l RegexList
	require.NoError(t, l.Set("abc"))
	require.NoError(t, l.Set("def"))
	assert.Equal(t, `"abc" or "def"`, l.String())
}
