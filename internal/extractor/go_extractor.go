package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoExtractor implements LanguageExtractor for Go.
type GoExtractor struct{}

func (g *GoExtractor) GetLanguage() *sitter.Language {
	return golang.GetLanguage()
}

func (g *GoExtractor) GetQuery() string {
	return `
		(import_spec) @import
		(function_declaration) @func
		(method_declaration) @method
		(type_spec) @type
		(const_spec) @const
		(var_spec) @var
	`
}

func (g *GoExtractor) ExtractSymbol(captureName string, node *sitter.Node, sourceCode []byte) *Symbol {
	if insideBlock(node) {
		return nil
	}
	switch captureName {
	case "import":
		pathNode := node.ChildByFieldName("path")
		if pathNode == nil {
			return nil
		}
		return g.symbol(node, strings.Trim(pathNode.Content(sourceCode), "\"`"), "import", "", sourceCode)
	case "func", "method":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return nil
		}
		kind := "function"
		if captureName == "method" {
			kind = "method"
		}
		return g.symbol(node, nameNode.Content(sourceCode), kind, g.signature(node, sourceCode), sourceCode)
	case "type":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return nil
		}
		kind := "type"
		if typeNode := node.ChildByFieldName("type"); typeNode != nil {
			switch typeNode.Type() {
			case "struct_type":
				kind = "struct"
			case "interface_type":
				kind = "interface"
			}
		}
		return g.symbol(declaration(node, "type_declaration"), nameNode.Content(sourceCode), kind, "", sourceCode)
	case "const", "var":
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			return nil
		}
		kind := "constant"
		parentType := "const_declaration"
		if captureName == "var" {
			kind = "variable"
			parentType = "var_declaration"
		}
		return g.symbol(declaration(node, parentType), nameNode.Content(sourceCode), kind, "", sourceCode)
	}
	return nil
}

func (g *GoExtractor) symbol(node *sitter.Node, name, kind, signature string, sourceCode []byte) *Symbol {
	return &Symbol{
		Name:      name,
		Kind:      kind,
		Signature: signature,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
		Doc:       g.extractDocComment(node, sourceCode),
	}
}

// signature is the declaration text up to the body.
func (g *GoExtractor) signature(node *sitter.Node, sourceCode []byte) string {
	content := node.Content(sourceCode)
	if body := node.ChildByFieldName("body"); body != nil {
		content = string(sourceCode[node.StartByte():body.StartByte()])
	}
	return strings.Join(strings.Fields(content), " ")
}

func (g *GoExtractor) extractDocComment(node *sitter.Node, sourceCode []byte) string {
	var commentLines []string
	currentNode := node
	for {
		prevSibling := currentNode.PrevSibling()
		if prevSibling == nil || (currentNode.StartPoint().Row-prevSibling.EndPoint().Row > 1) {
			break
		}
		if prevSibling.Type() != "comment" {
			break
		}
		commentLines = append([]string{prevSibling.Content(sourceCode)}, commentLines...)
		currentNode = prevSibling
	}
	return cleanDocComment(commentLines)
}

// declaration returns the enclosing declaration of a spec when it holds a
// single spec, so grouped declarations keep per-spec line ranges.
func declaration(node *sitter.Node, parentType string) *sitter.Node {
	parent := node.Parent()
	if parent != nil && parent.Type() == parentType && parent.NamedChildCount() == 1 {
		return parent
	}
	return node
}

// insideBlock reports whether node sits in a function body.
func insideBlock(node *sitter.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Type() == "block" {
			return true
		}
	}
	return false
}

func cleanDocComment(lines []string) string {
	var cleaned []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "//")
		l = strings.TrimPrefix(l, "#")
		l = strings.TrimPrefix(l, "/*")
		l = strings.TrimSuffix(l, "*/")
		cleaned = append(cleaned, strings.TrimSpace(l))
	}
	return strings.TrimSpace(strings.Join(cleaned, " "))
}
