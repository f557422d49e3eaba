// Package cliargs parses the strictly positional argument lists spec §6
// requires of every stage binary: "input/output file paths, hyperparameters
// as decimal strings", checked for exact arity up front so a wrong-arity
// invocation fails immediately with a one-line usage message rather than
// partway through a long-running stage.
package cliargs

import (
	"fmt"
	"os"
	"strconv"
)

// Args wraps a stage's positional argv (os.Args[1:] by convention) with
// typed accessors that report the argument's 0-based position and the
// stage's usage string on failure.
type Args struct {
	usage string
	argv  []string
}

// Require parses os.Args[1:], exiting the process with code 2 and usage on
// stderr (spec §7's "usage / argument errors ... reported at startup;
// immediate exit") if the arity doesn't match want exactly.
func Require(usage string, want int) *Args {
	argv := os.Args[1:]
	if len(argv) != want {
		fmt.Fprintf(os.Stderr, "usage: %s %s\n", programName(), usage)
		os.Exit(2)
	}
	return &Args{usage: usage, argv: argv}
}

func programName() string {
	if len(os.Args) == 0 {
		return "(stage)"
	}
	return os.Args[0]
}

// String returns argument i unchanged.
func (a *Args) String(i int) string {
	return a.argv[i]
}

// Int parses argument i as a base-10 integer, exiting with a descriptive
// message on failure.
func (a *Args) Int(i int) int {
	v, err := strconv.Atoi(a.argv[i])
	if err != nil {
		a.fatalf(i, "expected integer, got %q: %v", a.argv[i], err)
	}
	return v
}

// Float32 parses argument i as a decimal-string hyperparameter (spec §6).
func (a *Args) Float32(i int) float32 {
	v, err := strconv.ParseFloat(a.argv[i], 32)
	if err != nil {
		a.fatalf(i, "expected decimal number, got %q: %v", a.argv[i], err)
	}
	return float32(v)
}

func (a *Args) fatalf(i int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s: argument %d: %s\n", programName(), i+1, fmt.Sprintf(format, args...))
	fmt.Fprintf(os.Stderr, "usage: %s %s\n", programName(), a.usage)
	os.Exit(2)
}

// Fatal reports a runtime failure (I/O, invariant violation) per spec §7's
// remaining two failure kinds and exits with code 1.
func Fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", programName(), fmt.Sprintf(format, args...))
	os.Exit(1)
}

// MustCreate opens path for writing, calling Fatal on failure.
func MustCreate(path string) *os.File {
	f, err := os.Create(path)
	if err != nil {
		Fatal("create %s: %v", path, err)
	}
	return f
}

// MustOpen opens path for reading, calling Fatal on failure.
func MustOpen(path string) *os.File {
	f, err := os.Open(path)
	if err != nil {
		Fatal("open %s: %v", path, err)
	}
	return f
}
