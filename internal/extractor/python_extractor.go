package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonExtractor implements LanguageExtractor for Python scripts.
type PythonExtractor struct{}

func (p *PythonExtractor) GetLanguage() *sitter.Language {
	return python.GetLanguage()
}

func (p *PythonExtractor) GetQuery() string {
	return `
		(import_statement) @import
		(import_from_statement) @import
		(class_definition) @class
		(function_definition) @func
	`
}

func (p *PythonExtractor) ExtractSymbol(captureName string, node *sitter.Node, sourceCode []byte) *Symbol {
	if within(node, "function_definition") {
		return nil
	}
	switch captureName {
	case "import":
		text := strings.Join(strings.Fields(node.Content(sourceCode)), " ")
		return &Symbol{
			Name:      text,
			Kind:      "import",
			StartLine: int(node.StartPoint().Row + 1),
			EndLine:   int(node.EndPoint().Row + 1),
		}
	case "class", "func":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return nil
		}
		kind := "class"
		if captureName == "func" {
			kind = "function"
			if within(node, "class_definition") {
				kind = "method"
			}
		}
		return &Symbol{
			Name:      nameNode.Content(sourceCode),
			Kind:      kind,
			Signature: p.signature(node, sourceCode),
			StartLine: int(node.StartPoint().Row + 1),
			EndLine:   int(node.EndPoint().Row + 1),
			Doc:       p.docstring(node, sourceCode),
		}
	}
	return nil
}

func (p *PythonExtractor) signature(node *sitter.Node, sourceCode []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil {
		return ""
	}
	header := string(sourceCode[node.StartByte():body.StartByte()])
	header = strings.TrimSuffix(strings.TrimSpace(header), ":")
	return strings.Join(strings.Fields(header), " ")
}

// docstring returns the first line of a leading string literal in the body.
func (p *PythonExtractor) docstring(node *sitter.Node, sourceCode []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	expr := first.NamedChild(0)
	if expr.Type() != "string" {
		return ""
	}
	doc := expr.Content(sourceCode)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(doc, q) && strings.HasSuffix(doc, q) && len(doc) >= 2*len(q) {
			doc = doc[len(q) : len(doc)-len(q)]
			break
		}
	}
	return firstLine(strings.TrimSpace(doc))
}

func within(node *sitter.Node, nodeType string) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Type() == nodeType {
			return true
		}
	}
	return false
}
