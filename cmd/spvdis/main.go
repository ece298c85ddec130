// spvdis - SPIR-V disassembler
// Generates .spvasm text from a SPIR-V binary, or an opcode histogram with -stats.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gogpu/nzsl/spirv"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("spvdis", flag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.String("o", "", "output file (default: stdout)")
	stats := fs.Bool("stats", false, "print instruction counts instead of the listing")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: spvdis [options] <file.spv>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(data)%4 != 0 {
		fmt.Fprintf(stderr, "Error: file size %d is not a multiple of 4\n", len(data))
		return 1
	}
	words := spirv.FromBytes(data)

	var text string
	if *stats {
		text, err = histogram(words)
	} else {
		text, err = spirv.Disassemble(words)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(text), 0o644); err != nil { //nolint:gosec // G306: listing is not sensitive
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	if _, err := io.WriteString(stdout, text); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// histogram lists how often each opcode occurs, most frequent first.
func histogram(words []uint32) (string, error) {
	instructions, err := spirv.Decode(words)
	if err != nil {
		return "", err
	}
	counts := make(map[string]int)
	for _, inst := range instructions {
		counts[inst.Name()]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	out := fmt.Sprintf("; %d instructions, %d words\n", len(instructions), len(words))
	for _, name := range names {
		out += fmt.Sprintf("%6d %s\n", counts[name], name)
	}
	return out, nil
}
