package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/cmplx"
	"os"
	"path/filepath"
	"strconv"
)

// GoldenCase is a single membership test case in the golden file.
type GoldenCase struct {
	Re      float64
	Im      float64
	MaxIter int
}

// targets are points well inside or well outside the set, plus a few whose
// verdict depends on the iteration budget.
var targets = []GoldenCase{
	{0, 0, 100},
	{-1, 0, 1000},
	{-2, 0, 1000},
	{0.25, 0, 1000},
	{0, 1, 1000},
	{-1.5, 0, 500},
	{-0.1, 0.1, 200},
	{-0.5, 0.5, 200},
	{1.5, 0, 1},
	{1.5, 0, 2},
	{1, 0, 100},
	{0.5, 0, 100},
	{0.3, 0, 100},
	{0.5, 0.5, 50},
	{2, 0, 10},
	{0, 2, 10},
	{3, -3, 100},
}

func main() {
	outputDir := flag.String("out", "internal/mandelbrot/testdata", "Output directory for the golden file")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	filename := filepath.Join(*outputDir, "membership_golden.json")
	file, err := os.Create(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	fmt.Println("Generating golden data...")

	// One case per line keeps diffs of the golden file readable.
	w := bufio.NewWriter(file)
	fmt.Fprintln(w, "[")
	for i, c := range targets {
		sep := ","
		if i == len(targets)-1 {
			sep = ""
		}
		fmt.Fprintf(w, "  {\"re\": %s, \"im\": %s, \"max_iter\": %d, \"member\": %t}%s\n",
			formatFloat(c.Re), formatFloat(c.Im), c.MaxIter, memberCmplx(complex(c.Re, c.Im), c.MaxIter), sep)
	}
	fmt.Fprintln(w, "]")
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing golden file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully generated golden file at %s\n", filename)
}

// memberCmplx iterates z = z² + c with complex128 arithmetic and reports
// whether |z| stays at or below 2 for maxIter rounds.
// This serves as our "Oracle" using the standard library.
func memberCmplx(c complex128, maxIter int) bool {
	var z complex128
	for range maxIter {
		z = z*z + c
		if cmplx.Abs(z) > 2 {
			return false
		}
	}
	return true
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
