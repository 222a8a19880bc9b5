package fsops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultMaxListed = 5000
	DefaultMaxChars  = 50000

	binarySniffBytes  = 8000
	contentCacheSlots = 64

	notDirectoryErrorFormat = "repository root %s is not a directory"
)

// FileEntry is one listed repository file.
type FileEntry struct {
	Path   string
	IsText bool
	Size   int64
}

// NumberedLine is a 1-based line of file content.
type NumberedLine struct {
	Number int
	Text   string
}

// ReadResult is the outcome of a successful read.
type ReadResult struct {
	Path       string
	Lines      []NumberedLine
	TotalLines int
	Truncated  bool
}

// Repository confines listing and reading to one root directory.
type Repository struct {
	FS        FS
	Root      string
	Matcher   *Matcher
	MaxListed int
	MaxChars  int

	contents *lru.Cache[string, []byte]
}

var errListingCapped = errors.New("listing cap reached")

// NewRepository builds a Repository with default limits and a fresh content cache.
func NewRepository(fileSystem FS, root string, matcher *Matcher) (*Repository, error) {
	contents, err := lru.New[string, []byte](contentCacheSlots)
	if err != nil {
		return nil, fmt.Errorf("create content cache: %w", err)
	}
	if matcher == nil {
		matcher = NewMatcher(nil)
	}
	return &Repository{
		FS:        fileSystem,
		Root:      fileSystem.Clean(root),
		Matcher:   matcher,
		MaxListed: DefaultMaxListed,
		MaxChars:  DefaultMaxChars,
		contents:  contents,
	}, nil
}

// ListFiles walks the repository and returns regular files as sorted slash paths. Ignored
// directories are pruned; symbolic links and paths resolving outside the root are skipped.
func (repository *Repository) ListFiles(ctx context.Context) ([]FileEntry, error) {
	root := repository.Root
	info, err := repository.FS.Stat(root)
	if err != nil {
		return nil, classify(root, err)
	}
	if !info.IsDir() {
		return nil, newAccessError(CodeNotFound, root, fmt.Sprintf(notDirectoryErrorFormat, root))
	}
	realRoot, err := repository.FS.EvalSymlinks(root)
	if err != nil {
		return nil, classify(root, err)
	}

	limit := repository.MaxListed
	if limit <= 0 {
		limit = DefaultMaxListed
	}

	var entries []FileEntry
	walkErr := repository.FS.WalkDir(realRoot, func(current string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if current == realRoot {
				return err
			}
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if current == realRoot {
			return nil
		}
		relative, relErr := repository.FS.Rel(realRoot, current)
		if relErr != nil {
			return nil
		}
		relative = filepath.ToSlash(relative)

		if entry.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if entry.IsDir() {
			if repository.Matcher.ShouldIgnore(relative, true) {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || repository.Matcher.ShouldIgnore(relative, false) {
			return nil
		}
		if !repository.resolvesInside(realRoot, current) {
			return nil
		}

		var size int64
		if fileInfo, infoErr := entry.Info(); infoErr == nil {
			size = fileInfo.Size()
		}
		entries = append(entries, FileEntry{Path: relative, IsText: IsTextPath(relative), Size: size})
		if len(entries) >= limit {
			return errListingCapped
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errListingCapped) {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return nil, walkErr
		}
		return nil, classify(root, walkErr)
	}

	sort.Slice(entries, func(left, right int) bool { return entries[left].Path < entries[right].Path })
	return entries, nil
}

// ReadFile reads a repository-relative path and returns the lines in [startLine, endLine].
// A bound of zero or less is open. Lines are counted after the character cap is applied.
func (repository *Repository) ReadFile(ctx context.Context, relativePath string, startLine int, endLine int) (ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return ReadResult{}, err
	}
	cleaned, fullPath, accessErr := repository.resolve(relativePath)
	if accessErr != nil {
		return ReadResult{}, accessErr
	}

	linkInfo, err := repository.FS.Lstat(fullPath)
	if err != nil {
		return ReadResult{}, classify(cleaned, err)
	}
	if linkInfo.Mode()&fs.ModeSymlink != 0 {
		return ReadResult{}, newAccessError(CodePathTraversal, cleaned, "symlink not allowed")
	}
	realRoot, err := repository.FS.EvalSymlinks(repository.Root)
	if err != nil {
		return ReadResult{}, classify(cleaned, err)
	}
	if !repository.resolvesInside(realRoot, fullPath) {
		return ReadResult{}, newAccessError(CodePathTraversal, cleaned, "path resolves outside the repository")
	}
	if !linkInfo.Mode().IsRegular() {
		return ReadResult{}, newAccessError(CodeNotFound, cleaned, "not a regular file")
	}
	if extension := Extension(cleaned); !IsTextPath(cleaned) {
		return ReadResult{}, newAccessError(CodeBinaryContent, cleaned, "unsupported file type "+extension)
	}

	data, err := repository.content(fullPath)
	if err != nil {
		return ReadResult{}, classify(cleaned, err)
	}
	sniff := data
	if len(sniff) > binarySniffBytes {
		sniff = sniff[:binarySniffBytes]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return ReadResult{}, newAccessError(CodeBinaryContent, cleaned, "file contains NUL bytes")
	}

	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	maxChars := repository.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	truncated := false
	if len(text) > maxChars {
		if runes := []rune(text); len(runes) > maxChars {
			text = string(runes[:maxChars])
			truncated = true
		}
	}

	allLines := splitLines(text)
	result := ReadResult{Path: cleaned, TotalLines: len(allLines), Truncated: truncated}

	first := startLine
	if first < 1 {
		first = 1
	}
	last := endLine
	if last < 1 || last > len(allLines) {
		last = len(allLines)
	}
	for number := first; number <= last; number++ {
		result.Lines = append(result.Lines, NumberedLine{Number: number, Text: allLines[number-1]})
	}
	return result, nil
}

func (repository *Repository) resolve(relativePath string) (string, string, *AccessError) {
	trimmed := strings.TrimSpace(relativePath)
	if trimmed == "" {
		return "", "", newAccessError(CodePathTraversal, relativePath, "empty path")
	}
	slashed := strings.ReplaceAll(trimmed, "\\", "/")
	if repository.FS.IsAbs(trimmed) || strings.HasPrefix(slashed, "/") || filepath.VolumeName(trimmed) != "" {
		return "", "", newAccessError(CodePathTraversal, trimmed, "absolute paths are not allowed")
	}
	cleaned := path.Clean(slashed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", "", newAccessError(CodePathTraversal, trimmed, "path escapes the repository")
	}
	return cleaned, repository.FS.Join(repository.Root, filepath.FromSlash(cleaned)), nil
}

func (repository *Repository) resolvesInside(realRoot string, fullPath string) bool {
	resolved, err := repository.FS.EvalSymlinks(fullPath)
	if err != nil {
		return false
	}
	relative, err := repository.FS.Rel(realRoot, resolved)
	if err != nil {
		return false
	}
	relative = filepath.ToSlash(relative)
	return relative != ".." && !strings.HasPrefix(relative, "../")
}

func (repository *Repository) content(fullPath string) ([]byte, error) {
	if repository.contents != nil {
		if cached, ok := repository.contents.Get(fullPath); ok {
			return cached, nil
		}
	}
	data, err := repository.FS.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}
	if repository.contents != nil {
		repository.contents.Add(fullPath, data)
	}
	return data, nil
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
