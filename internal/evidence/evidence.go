// Package evidence records exactly which file lines were retrieved during one invocation.
//
// A Set is append-only while the executor runs and frozen afterwards. Lookups honor
// first-read-wins: once a path has an item, later items for the same path are ignored.
package evidence

import (
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	fileHeaderPrefix = "FILE: "
	lineSeparator    = "| "
)

// Line is one retrieved source line with its 1-based number.
type Line struct {
	Number int
	Text   string
}

// Item is the record of what was retrieved for one file.
type Item struct {
	Path      string
	Lines     []Line
	Truncated bool
	Binary    bool
	ReadError string
}

// Readable reports whether the item carries text lines usable as citations.
func (item Item) Readable() bool {
	return !item.Binary && item.ReadError == "" && len(item.Lines) > 0
}

// Has reports whether the given line number was retrieved.
func (item Item) Has(lineNumber int) bool {
	index := sort.Search(len(item.Lines), func(i int) bool { return item.Lines[i].Number >= lineNumber })
	return index < len(item.Lines) && item.Lines[index].Number == lineNumber
}

// Span returns the first and last retrieved line numbers.
func (item Item) Span() (int, int, bool) {
	if len(item.Lines) == 0 {
		return 0, 0, false
	}
	return item.Lines[0].Number, item.Lines[len(item.Lines)-1].Number, true
}

// Set is the ordered collection of items for one invocation.
type Set struct {
	items  []Item
	index  map[string]int
	frozen bool
}

// NewSet returns an empty set open for appends.
func NewSet() *Set {
	return &Set{index: map[string]int{}}
}

// NormalizePath converts a repository-relative path into the canonical slash form used as key.
func NormalizePath(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	cleaned := path.Clean(filepath.ToSlash(trimmed))
	return strings.TrimPrefix(cleaned, "./")
}

// Append adds an item. It returns false when the set is frozen or the path was already read.
func (set *Set) Append(item Item) bool {
	if set.frozen {
		return false
	}
	item.Path = NormalizePath(item.Path)
	if item.Path == "" {
		return false
	}
	if _, exists := set.index[item.Path]; exists {
		return false
	}
	item.Lines = normalizeLines(item.Lines)
	set.index[item.Path] = len(set.items)
	set.items = append(set.items, item)
	return true
}

// Freeze ends the append phase.
func (set *Set) Freeze() { set.frozen = true }

// Frozen reports whether Freeze was called.
func (set *Set) Frozen() bool { return set.frozen }

// Len is the number of items, readable or not.
func (set *Set) Len() int { return len(set.items) }

// Items returns a copy of the items in insertion order.
func (set *Set) Items() []Item {
	out := make([]Item, len(set.items))
	copy(out, set.items)
	return out
}

// Lookup returns the first item recorded for the path.
func (set *Set) Lookup(rawPath string) (Item, bool) {
	position, ok := set.index[NormalizePath(rawPath)]
	if !ok {
		return Item{}, false
	}
	return set.items[position], true
}

// ReadableCount counts items usable as citation sources.
func (set *Set) ReadableCount() int {
	count := 0
	for _, item := range set.items {
		if item.Readable() {
			count++
		}
	}
	return count
}

// FirstMissing returns the first line in [start, end] that was not retrieved for the path.
// The boolean is false when every line in the range was retrieved.
func (set *Set) FirstMissing(rawPath string, start int, end int) (int, bool) {
	item, ok := set.Lookup(rawPath)
	if !ok || !item.Readable() {
		return start, true
	}
	for lineNumber := start; lineNumber <= end; lineNumber++ {
		if !item.Has(lineNumber) {
			return lineNumber, true
		}
	}
	return 0, false
}

// Contains reports whether every line in [start, end] was retrieved for the path.
func (set *Set) Contains(rawPath string, start int, end int) bool {
	if start < 1 || end < start {
		return false
	}
	_, missing := set.FirstMissing(rawPath, start, end)
	return !missing
}

// Render writes every readable item as a FILE header followed by numbered lines.
func (set *Set) Render() string {
	var builder strings.Builder
	for _, item := range set.items {
		if !item.Readable() {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(fileHeaderPrefix)
		builder.WriteString(item.Path)
		for _, line := range item.Lines {
			builder.WriteByte('\n')
			builder.WriteString(strconv.Itoa(line.Number))
			builder.WriteString(lineSeparator)
			builder.WriteString(line.Text)
		}
	}
	return builder.String()
}

func normalizeLines(lines []Line) []Line {
	if len(lines) == 0 {
		return nil
	}
	sorted := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.Number < 1 {
			continue
		}
		sorted = append(sorted, line)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	deduplicated := sorted[:0]
	for _, line := range sorted {
		if len(deduplicated) > 0 && deduplicated[len(deduplicated)-1].Number == line.Number {
			continue
		}
		deduplicated = append(deduplicated, line)
	}
	return deduplicated
}
