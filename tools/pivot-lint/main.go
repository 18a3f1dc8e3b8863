// pivot-lint checks store access patterns in pivot's services.
package main

import (
	"golang.org/x/tools/go/analysis/multichecker"

	"github.com/ersonp/pivot/tools/pivot-lint/analyzers"
)

func main() {
	multichecker.Main(analyzers.All()...)
}
