// Package outline extracts declaration outlines from retrieved source with tree-sitter.
package outline

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/temirov/repo-copilot/internal/evidence"
)

// Language identifies a supported grammar.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangRuby       Language = "ruby"
	LangJava       Language = "java"
	LangRust       Language = "rust"
)

var extensionLanguages = map[string]Language{
	".go":   LangGo,
	".py":   LangPython,
	".pyi":  LangPython,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
	".ts":   LangTypeScript,
	".tsx":  LangTSX,
	".rb":   LangRuby,
	".java": LangJava,
	".rs":   LangRust,
}

// definitionKinds maps grammar node types to the symbol kind they declare.
var definitionKinds = map[Language]map[string]string{
	LangGo: {
		"function_declaration": "func",
		"method_declaration":   "method",
		"type_spec":            "type",
	},
	LangPython: {
		"function_definition": "def",
		"class_definition":    "class",
	},
	LangJavaScript: {
		"function_declaration":           "function",
		"generator_function_declaration": "function",
		"class_declaration":              "class",
		"method_definition":              "method",
	},
	LangTypeScript: {
		"function_declaration":           "function",
		"generator_function_declaration": "function",
		"class_declaration":              "class",
		"abstract_class_declaration":     "class",
		"method_definition":              "method",
		"interface_declaration":          "interface",
		"type_alias_declaration":         "type",
	},
	LangRuby: {
		"method":           "def",
		"singleton_method": "def",
		"class":            "class",
		"module":           "module",
	},
	LangJava: {
		"class_declaration":       "class",
		"interface_declaration":   "interface",
		"enum_declaration":        "enum",
		"method_declaration":      "method",
		"constructor_declaration": "constructor",
	},
	LangRust: {
		"function_item": "fn",
		"struct_item":   "struct",
		"enum_item":     "enum",
		"trait_item":    "trait",
	},
}

// Symbol is one declaration with its 1-based line span.
type Symbol struct {
	Name      string
	Kind      string
	StartLine int
	EndLine   int
}

// LanguageFor reports the grammar used for a path.
func LanguageFor(filePath string) (Language, bool) {
	language, ok := extensionLanguages[strings.ToLower(path.Ext(filePath))]
	return language, ok
}

func grammar(language Language) (*sitter.Language, error) {
	switch language {
	case LangGo:
		return golang.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangRuby:
		return ruby.GetLanguage(), nil
	case LangJava:
		return java.GetLanguage(), nil
	case LangRust:
		return rust.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", language)
	}
}

// Parse returns the declarations found in content, ordered by line.
func Parse(ctx context.Context, language Language, content []byte) ([]Symbol, error) {
	treeLanguage, err := grammar(language)
	if err != nil {
		return nil, err
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(treeLanguage)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	defer tree.Close()

	kinds := definitionKinds[language]
	if language == LangTSX {
		kinds = definitionKinds[LangTypeScript]
	}
	var symbols []Symbol
	collect(tree.RootNode(), content, kinds, &symbols)
	sort.SliceStable(symbols, func(left, right int) bool { return symbols[left].StartLine < symbols[right].StartLine })
	return symbols, nil
}

func collect(node *sitter.Node, content []byte, kinds map[string]string, symbols *[]Symbol) {
	if node == nil {
		return
	}
	if kind, ok := kinds[node.Type()]; ok {
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			*symbols = append(*symbols, Symbol{
				Name:      nameNode.Content(content),
				Kind:      kind,
				StartLine: int(node.StartPoint().Row) + 1,
				EndLine:   int(node.EndPoint().Row) + 1,
			})
		}
	}
	for index := 0; index < int(node.NamedChildCount()); index++ {
		collect(node.NamedChild(index), content, kinds, symbols)
	}
}

// Describe renders an outline of every readable item in the set whose language is supported.
// Unread lines are parsed as blank lines so reported numbers match the file; only symbols that
// start on a retrieved line are listed.
func Describe(ctx context.Context, set *evidence.Set) string {
	var sections []string
	for _, item := range set.Items() {
		if !item.Readable() {
			continue
		}
		language, supported := LanguageFor(item.Path)
		if !supported {
			continue
		}
		symbols, err := Parse(ctx, language, reconstruct(item))
		if err != nil {
			continue
		}
		var entries []string
		for _, symbol := range symbols {
			if !item.Has(symbol.StartLine) {
				continue
			}
			entries = append(entries, fmt.Sprintf("  %s %s (lines %d-%d)", symbol.Kind, symbol.Name, symbol.StartLine, symbol.EndLine))
		}
		if len(entries) == 0 {
			continue
		}
		sections = append(sections, item.Path+":\n"+strings.Join(entries, "\n"))
	}
	return strings.Join(sections, "\n")
}

func reconstruct(item evidence.Item) []byte {
	_, last, ok := item.Span()
	if !ok {
		return nil
	}
	lines := make([]string, last)
	for _, line := range item.Lines {
		lines[line.Number-1] = line.Text
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}
