// Command tapsuite runs TAP pulse-response files through the correction
// and normalization pipeline and writes the resulting workbooks.
//
// Usage:
//
//	tapsuite [flags] file ...
//
// Every file is parsed (raw TAP-1, TAP-2/3 xlsx or serialized snapshot),
// each species is corrected with the configured baseline window and
// smoothing, and one AMU=<amu>.xlsx workbook per species is written to the
// output directory. With -inert, all species are additionally normalized
// against that species and written to <inert>-inert-normalized.xlsx.
//
// Examples:
//
//	tapsuite pulse_2 pulse_28
//	tapsuite -baseline 0.1,0.3 -smooth -window 11 -order 3 run.xlsx
//	tapsuite -inert 40.0 -out results -metrics tap.prom *.dat
//	tapsuite -config tapsuite.yaml -list run.xlsx
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
