// Package extractor builds a short structural outline of tracked source code
// with tree-sitter. The outline is fed to the description augmenter.
package extractor

import sitter "github.com/smacker/go-tree-sitter"

// Symbol is one top-level declaration found in the source.
type Symbol struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"` // e.g., "function", "method", "class", "type", "import"
	Signature string `json:"signature,omitempty"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Doc       string `json:"doc,omitempty"`
}

// LanguageExtractor defines the interface that each language parser must implement.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	GetQuery() string
	ExtractSymbol(captureName string, node *sitter.Node, sourceCode []byte) *Symbol
}
