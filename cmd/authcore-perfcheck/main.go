// Command authcore-perfcheck compares two `go test -bench` outputs and fails
// when a tracked benchmark regresses past the threshold.
//
//	go test -run '^$' -bench . -count 5 . > new.txt
//	authcore-perfcheck -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// trackedMetric is one benchmark/unit pair the check gates on.
type trackedMetric struct {
	bench string
	unit  string
}

var tracked = []trackedMetric{
	{"BenchmarkLogin", "ns/op"},
	{"BenchmarkRefresh", "ns/op"},
	{"BenchmarkValidateToken", "allocs/op"},
	{"BenchmarkValidateToken", "ns/op"},
	{"BenchmarkValidateTokenParallel", "ns/op"},
}

// sampleSet maps benchmark name to unit to every observed value.
type sampleSet map[string]map[string][]float64

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("authcore-perfcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baselinePath := fs.String("baseline", "", "path to baseline benchmark output")
	candidatePath := fs.String("candidate", "", "path to candidate benchmark output")
	threshold := fs.Float64("threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *baselinePath == "" || *candidatePath == "" || *threshold < 0 {
		fmt.Fprintln(stderr, "-baseline and -candidate are required and -threshold must be >= 0")
		return 2
	}

	baseline, err := parseBenchmarkFile(*baselinePath)
	if err != nil {
		fmt.Fprintf(stderr, "baseline: %v\n", err)
		return 1
	}
	candidate, err := parseBenchmarkFile(*candidatePath)
	if err != nil {
		fmt.Fprintf(stderr, "candidate: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "benchmark unit baseline candidate delta")
	failures := compare(stdout, baseline, candidate, *threshold)
	if len(failures) == 0 {
		return 0
	}
	fmt.Fprintln(stderr, "regressions:")
	for _, f := range failures {
		fmt.Fprintf(stderr, "  %s\n", f)
	}
	return 1
}

// compare prints one line per tracked metric to out and returns the failures.
func compare(out io.Writer, baseline, candidate sampleSet, threshold float64) []string {
	var failures []string
	for _, tm := range tracked {
		old, cur := baseline[tm.bench][tm.unit], candidate[tm.bench][tm.unit]
		if len(old) == 0 || len(cur) == 0 {
			failures = append(failures, fmt.Sprintf("missing samples for %s %s", tm.bench, tm.unit))
			continue
		}

		before, after := median(old), median(cur)
		if before <= 0 {
			// A zero baseline (typically allocs/op) fails on any growth.
			if after > 0 {
				failures = append(failures, fmt.Sprintf("%s %s rose from 0 to %.3f", tm.bench, tm.unit, after))
			}
			continue
		}

		delta := after/before - 1
		fmt.Fprintf(out, "%s %s %.3f %.3f %+0.2f%%\n", tm.bench, tm.unit, before, after, delta*100)
		if delta > threshold {
			failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", tm.bench, tm.unit, delta*100, threshold*100))
		}
	}
	return failures
}

func parseBenchmarkFile(path string) (sampleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseBenchmarks(f)
}

// parseBenchmarks reads result lines of the form
// "BenchmarkX-8  N  value unit  value unit ..." and keeps tracked ones.
func parseBenchmarks(r io.Reader) (sampleSet, error) {
	samples := sampleSet{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := normalizeBenchmarkName(fields[0])
		if !isTracked(name) {
			continue
		}

		units := samples[name]
		if units == nil {
			units = map[string][]float64{}
			samples[name] = units
		}
		for pair := fields[2:]; len(pair) >= 2; pair = pair[2:] {
			if v, err := strconv.ParseFloat(pair[0], 64); err == nil {
				units[pair[1]] = append(units[pair[1]], v)
			}
		}
	}
	return samples, sc.Err()
}

func isTracked(name string) bool {
	return slices.ContainsFunc(tracked, func(tm trackedMetric) bool { return tm.bench == name })
}

// normalizeBenchmarkName strips the -GOMAXPROCS suffix.
func normalizeBenchmarkName(raw string) string {
	base, procs, ok := cutLast(raw, "-")
	if !ok || base == "" {
		return raw
	}
	if _, err := strconv.Atoi(procs); err != nil {
		return raw
	}
	return base
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Sorted(slices.Values(values))
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
