package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Outline is the list of declarations found in one source unit.
type Outline struct {
	Language string   `json:"language"`
	Package  string   `json:"package,omitempty"`
	Symbols  []Symbol `json:"symbols"`
}

// Lines renders the outline as one short line per symbol.
func (o *Outline) Lines() []string {
	if o == nil {
		return nil
	}
	lines := make([]string, 0, len(o.Symbols))
	for _, s := range o.Symbols {
		label := s.Name
		if s.Signature != "" {
			label = s.Signature
		}
		lines = append(lines, fmt.Sprintf("%s %s (line %d)", s.Kind, label, s.StartLine))
	}
	return lines
}

// Extractor orchestrates the extraction process using language-specific extractors.
type Extractor struct {
	langExtractor LanguageExtractor
	langName      string
}

// NewExtractor creates a new extractor for a given language.
func NewExtractor(lang string) (*Extractor, error) {
	var langExt LanguageExtractor
	switch lang {
	case "go":
		langExt = &GoExtractor{}
	case "python":
		langExt = &PythonExtractor{}
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	return &Extractor{langExtractor: langExt, langName: lang}, nil
}

// Extract outlines code written in lang. Unsupported languages yield an
// empty outline rather than an error.
func Extract(ctx context.Context, lang string, code []byte) (*Outline, error) {
	ext, err := NewExtractor(lang)
	if err != nil {
		return &Outline{Language: lang}, nil
	}
	return ext.Extract(ctx, code)
}

// Extract parses sourceCode and collects its declarations in source order.
func (e *Extractor) Extract(ctx context.Context, sourceCode []byte) (*Outline, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(e.langExtractor.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s source: %w", e.langName, err)
	}
	defer tree.Close()

	outline := &Outline{
		Language: e.langName,
		Package:  e.detectPackageName(tree.RootNode(), sourceCode),
	}

	query, err := sitter.NewQuery([]byte(e.langExtractor.GetQuery()), e.langExtractor.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			captureName := query.CaptureNameForId(c.Index)
			if sym := e.langExtractor.ExtractSymbol(captureName, c.Node, sourceCode); sym != nil {
				outline.Symbols = append(outline.Symbols, *sym)
			}
		}
	}

	return outline, nil
}

func (e *Extractor) detectPackageName(root *sitter.Node, sourceCode []byte) string {
	if e.langName != "go" {
		return ""
	}
	pkgQuery, err := sitter.NewQuery([]byte(`(package_clause (package_identifier) @pkg)`), e.langExtractor.GetLanguage())
	if err != nil {
		return ""
	}
	defer pkgQuery.Close()
	pqc := sitter.NewQueryCursor()
	defer pqc.Close()
	pqc.Exec(pkgQuery, root)
	if m, ok := pqc.NextMatch(); ok && len(m.Captures) > 0 {
		return m.Captures[0].Node.Content(sourceCode)
	}
	return ""
}

// DetectLanguage guesses the language of code from its file name, then from
// its content. The result is "" when nothing matches.
func DetectLanguage(name string, code string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".py", ".pyw", ".ipynb":
		return "python"
	case ".go":
		return "go"
	case ".r":
		return "r"
	case ".sh", ".bash":
		return "shell"
	case ".jl":
		return "julia"
	}
	trimmed := strings.TrimSpace(code)
	switch {
	case strings.HasPrefix(trimmed, "package "):
		return "go"
	case strings.HasPrefix(trimmed, "#!") && strings.Contains(firstLine(trimmed), "python"):
		return "python"
	case strings.HasPrefix(trimmed, "#!") && strings.Contains(firstLine(trimmed), "sh"):
		return "shell"
	case strings.Contains(code, "\ndef ") || strings.HasPrefix(trimmed, "def ") ||
		strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from "):
		return "python"
	}
	return ""
}

// Extension returns the file extension used when persisting code of lang.
func Extension(lang string) string {
	switch strings.ToLower(lang) {
	case "python":
		return ".py"
	case "go":
		return ".go"
	case "r":
		return ".R"
	case "shell":
		return ".sh"
	case "julia":
		return ".jl"
	default:
		return ".txt"
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
