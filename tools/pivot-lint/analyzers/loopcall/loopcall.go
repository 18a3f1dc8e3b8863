// Package loopcall detects single-row store lookups inside loops.
package loopcall

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer detects single-row store lookups inside loops that should use
// the batch queries (EntitiesExist, ListRightIDs, FindAssociations).
var Analyzer = &analysis.Analyzer{
	Name:     "loopcall",
	Doc:      "detects single-row store lookups inside loops that should be batched",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// rowLookups maps single-row RelationalDB methods to their batch form.
var rowLookups = map[string]string{
	"FindEntity":      "EntitiesExist",
	"FindAssociation": "FindAssociations or ListRightIDs",
	"LockEntity":      "one lock before the loop",
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.RangeStmt)(nil),
		(*ast.ForStmt)(nil),
	}

	inspect.Preorder(nodeFilter, func(n ast.Node) {
		var body *ast.BlockStmt
		switch stmt := n.(type) {
		case *ast.RangeStmt:
			body = stmt.Body
		case *ast.ForStmt:
			body = stmt.Body
		}
		if body == nil {
			return
		}

		ast.Inspect(body, func(n ast.Node) bool {
			// Nested loops are visited on their own.
			switch n.(type) {
			case *ast.RangeStmt, *ast.ForStmt:
				return false
			}

			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}

			if batch, ok := rowLookups[sel.Sel.Name]; ok {
				pass.Reportf(call.Pos(),
					"potential N+1: %s called inside loop, use %s",
					sel.Sel.Name, batch)
			}
			return true
		})
	})

	return nil, nil
}
