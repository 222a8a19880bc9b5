package fsops

import (
	"path"
	"strings"
)

var textExtensions = map[string]bool{
	".py": true, ".pyi": true, ".pyx": true,
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true, ".cjs": true,
	".html": true, ".htm": true, ".css": true, ".scss": true, ".sass": true, ".less": true, ".svg": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cc": true, ".cxx": true, ".cs": true,
	".java": true, ".kt": true, ".kts": true, ".scala": true, ".groovy": true,
	".go": true, ".rs": true, ".rb": true, ".php": true, ".swift": true, ".m": true, ".mm": true,
	".r": true, ".jl": true, ".lua": true, ".pl": true, ".pm": true, ".ex": true, ".exs": true,
	".hs": true, ".erl": true, ".clj": true, ".dart": true, ".v": true, ".zig": true,
	".sh": true, ".bash": true, ".zsh": true, ".fish": true, ".bat": true, ".cmd": true, ".ps1": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".cfg": true, ".conf": true,
	".xml": true, ".env": true, ".properties": true, ".gradle": true, ".mod": true, ".sum": true,
	".md": true, ".txt": true, ".rst": true, ".csv": true, ".tsv": true, ".log": true,
	".sql": true, ".dockerfile": true,
	".graphql": true, ".proto": true, ".tf": true, ".hcl": true,
}

// IsTextPath reports whether a path may be read as text. Extensionless files (Makefile,
// Dockerfile, LICENSE) and dotfiles (.gitignore) are text; the NUL-byte check still applies
// when they are read.
func IsTextPath(name string) bool {
	extension := Extension(name)
	if extension == "" {
		return true
	}
	return textExtensions[extension]
}

// Extension returns the lowercase extension of the final path element. A leading dot names a
// dotfile, not an extension.
func Extension(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.ToLower(path.Ext(strings.TrimLeft(base, ".")))
}
