// Command kefir-amd64-dump is a smoke-test harness for internal/codegen: it
// loads a textual IR fixture (internal/ir.LoadFixture), translates every
// function in it, and prints the lowered instruction stream for manual
// inspection. It stands in for the module-level driver and the real
// assembly-text Emitter, both out of scope for this backend.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewDumpCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
