// Command tpat-vet runs the tpat rules as a vet tool:
//
//	go vet -vettool=$(which tpat-vet) ./...
//
// Rules are read from .tpat.yaml in the working directory when present.
package main

import (
	"log"

	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/gnolang/tpat/internal/analyzer"
	"github.com/gnolang/tpat/internal/rules"
)

func main() {
	cfg, err := rules.LoadOptional(rules.DefaultConfigFile)
	if err != nil {
		log.Fatal(err)
	}
	reg, err := rules.NewRegistry(nil, cfg)
	if err != nil {
		log.Fatal(err)
	}
	singlechecker.Main(analyzer.New(reg))
}
