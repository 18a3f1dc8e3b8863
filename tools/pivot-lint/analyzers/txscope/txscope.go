// Package txscope detects store calls that escape a transaction.
//
// Inside
//
//	s.db.WithinTx(ctx, func(tx ports.RelationalDB) error { ... })
//
// every store access must go through tx. A call on s.db inside the closure
// runs outside the transaction and is not rolled back with it.
package txscope

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports calls on the outer store inside its WithinTx closure.
var Analyzer = &analysis.Analyzer{
	Name:     "txscope",
	Doc:      "detects calls on the outer store inside its WithinTx closure",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	inspect.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "WithinTx" || len(call.Args) == 0 {
			return
		}
		fn, ok := call.Args[len(call.Args)-1].(*ast.FuncLit)
		if !ok {
			return
		}

		outer := types.ExprString(sel.X)
		txName := "tx"
		if params := fn.Type.Params.List; len(params) > 0 && len(params[0].Names) > 0 {
			txName = params[0].Names[0].Name
		}

		ast.Inspect(fn.Body, func(n ast.Node) bool {
			inner, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			isel, ok := inner.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			if types.ExprString(isel.X) == outer {
				pass.Reportf(inner.Pos(),
					"%s.%s called inside WithinTx runs outside the transaction, use %s",
					outer, isel.Sel.Name, txName)
			}
			return true
		})
	})

	return nil, nil
}
