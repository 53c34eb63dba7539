package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// OperationForName mirrors the GraphQL-over-HTTP selection rule: pick the
// named operation, or the lone operation when the document has exactly one
// and no name was given.
func OperationForName(doc *QueryDocument, name string) *OperationDefinition {
	op := doc.Operations.ForName(name)
	if op == nil && name == "" && len(doc.Operations) == 1 {
		op = doc.Operations[0]
	}
	return op
}
