package fixer

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ValidPython reports whether content parses as structurally valid
// Python. Tree-sitter is error-tolerant, so validity means the parse
// tree contains no error or missing nodes.
func ValidPython(ctx context.Context, content []byte) (bool, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return false, fmt.Errorf("parsing python: %w", err)
	}
	defer tree.Close()

	return !tree.RootNode().HasError(), nil
}
