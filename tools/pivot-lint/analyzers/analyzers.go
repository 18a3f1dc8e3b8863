// Package analyzers lists the static analyzers run by pivot-lint.
package analyzers

import (
	"golang.org/x/tools/go/analysis"

	"github.com/ersonp/pivot/tools/pivot-lint/analyzers/loopcall"
	"github.com/ersonp/pivot/tools/pivot-lint/analyzers/txscope"
)

// All returns all analyzers to run.
func All() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		loopcall.Analyzer,
		txscope.Analyzer,
	}
}
