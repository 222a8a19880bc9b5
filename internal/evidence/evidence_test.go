package evidence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/repo-copilot/internal/evidence"
)

func numbered(start int, texts ...string) []evidence.Line {
	lines := make([]evidence.Line, 0, len(texts))
	for offset, text := range texts {
		lines = append(lines, evidence.Line{Number: start + offset, Text: text})
	}
	return lines
}

func TestSetFirstReadWins(t *testing.T) {
	set := evidence.NewSet()
	require.True(t, set.Append(evidence.Item{Path: "./main.py", Lines: numbered(1, "import os")}))
	require.False(t, set.Append(evidence.Item{Path: "main.py", Lines: numbered(1, "other", "lines")}))

	item, found := set.Lookup("main.py")
	require.True(t, found)
	assert.Len(t, item.Lines, 1)
	assert.Equal(t, "import os", item.Lines[0].Text)
	assert.Equal(t, 1, set.Len())
}

func TestSetFrozenRejectsAppend(t *testing.T) {
	set := evidence.NewSet()
	set.Freeze()
	assert.False(t, set.Append(evidence.Item{Path: "a.go", Lines: numbered(1, "package a")}))
	assert.Equal(t, 0, set.Len())
}

func TestSetContains(t *testing.T) {
	set := evidence.NewSet()
	set.Append(evidence.Item{Path: "utils/math.py", Lines: numbered(10, "a", "b", "c", "d", "e")})
	set.Append(evidence.Item{Path: "data.db", Binary: true})

	testCases := []struct {
		name     string
		path     string
		start    int
		end      int
		expected bool
	}{
		{name: "range inside read lines", path: "utils/math.py", start: 11, end: 13, expected: true},
		{name: "single line", path: "utils/math.py", start: 14, end: 14, expected: true},
		{name: "range crosses the end of what was read", path: "utils/math.py", start: 13, end: 15, expected: false},
		{name: "line before what was read", path: "utils/math.py", start: 1, end: 1, expected: false},
		{name: "unknown path", path: "main.py", start: 1, end: 1, expected: false},
		{name: "binary item", path: "data.db", start: 1, end: 1, expected: false},
		{name: "reversed range", path: "utils/math.py", start: 13, end: 11, expected: false},
		{name: "zero line", path: "utils/math.py", start: 0, end: 11, expected: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, set.Contains(testCase.path, testCase.start, testCase.end))
		})
	}
}

func TestAppendSortsAndDeduplicatesLines(t *testing.T) {
	set := evidence.NewSet()
	set.Append(evidence.Item{Path: "a.go", Lines: []evidence.Line{{Number: 3, Text: "c"}, {Number: 1, Text: "a"}, {Number: 3, Text: "dup"}, {Number: 0, Text: "bad"}}})

	item, _ := set.Lookup("a.go")
	first, last, ok := item.Span()
	require.True(t, ok)
	assert.Equal(t, 1, first)
	assert.Equal(t, 3, last)
	assert.Len(t, item.Lines, 2)
	assert.False(t, item.Has(2))
}

func TestRenderSkipsUnreadableItems(t *testing.T) {
	set := evidence.NewSet()
	set.Append(evidence.Item{Path: "main.py", Lines: numbered(1, "print('hi')")})
	set.Append(evidence.Item{Path: "blob.bin", Binary: true})
	set.Append(evidence.Item{Path: "gone.py", ReadError: "not found"})
	set.Append(evidence.Item{Path: "util.py", Lines: numbered(4, "x = 1")})

	assert.Equal(t, "FILE: main.py\n1| print('hi')\n\nFILE: util.py\n4| x = 1", set.Render())
	assert.Equal(t, 2, set.ReadableCount())
}
