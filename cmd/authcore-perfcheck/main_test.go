package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const baselineOutput = `goos: linux
goarch: amd64
pkg: github.com/MrEthical07/authcore
BenchmarkValidateToken-8           	  300000	      4000 ns/op	    2000 B/op	      30 allocs/op
BenchmarkValidateToken-8           	  300000	      4200 ns/op	    2000 B/op	      30 allocs/op
BenchmarkValidateTokenParallel-8   	 1000000	      1000 ns/op
BenchmarkRefresh-8                 	   50000	     20000 ns/op
BenchmarkLogin-8                   	     100	  10000000 ns/op
BenchmarkMetricsInc-8              	100000000	        10 ns/op
PASS
`

func TestParseBenchmarks(t *testing.T) {
	samples, err := parseBenchmarks(strings.NewReader(baselineOutput))
	if err != nil {
		t.Fatalf("parseBenchmarks failed: %v", err)
	}
	if got := samples["BenchmarkValidateToken"]["ns/op"]; len(got) != 2 || got[1] != 4200 {
		t.Fatalf("unexpected ns/op samples: %v", got)
	}
	if got := samples["BenchmarkValidateToken"]["allocs/op"]; len(got) != 2 || got[0] != 30 {
		t.Fatalf("unexpected allocs/op samples: %v", got)
	}
	if _, ok := samples["BenchmarkMetricsInc"]; ok {
		t.Fatal("untracked benchmark must be ignored")
	}
}

func TestCompare(t *testing.T) {
	baseline, _ := parseBenchmarks(strings.NewReader(baselineOutput))

	same, _ := parseBenchmarks(strings.NewReader(baselineOutput))
	if failures := compare(io.Discard, baseline, same, defaultThreshold); len(failures) != 0 {
		t.Fatalf("expected no failures, got %v", failures)
	}

	slower := strings.Replace(baselineOutput, "20000 ns/op", "40000 ns/op", 1)
	candidate, _ := parseBenchmarks(strings.NewReader(slower))
	failures := compare(io.Discard, baseline, candidate, defaultThreshold)
	if len(failures) != 1 || !strings.Contains(failures[0], "BenchmarkRefresh ns/op") {
		t.Fatalf("expected one refresh regression, got %v", failures)
	}

	missing := strings.Replace(baselineOutput, "BenchmarkLogin-8", "BenchmarkOther-8", 1)
	candidate, _ = parseBenchmarks(strings.NewReader(missing))
	failures = compare(io.Discard, baseline, candidate, defaultThreshold)
	if len(failures) != 1 || !strings.Contains(failures[0], "missing samples for BenchmarkLogin") {
		t.Fatalf("expected missing login samples, got %v", failures)
	}
}

func TestNormalizeBenchmarkName(t *testing.T) {
	if got := normalizeBenchmarkName("BenchmarkRefresh-16"); got != "BenchmarkRefresh" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := normalizeBenchmarkName("BenchmarkRefresh"); got != "BenchmarkRefresh" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestMedian(t *testing.T) {
	if got := median([]float64{3, 1, 2}); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := median([]float64{4, 1, 2, 3}); got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}
}

func TestRunFlagsAndFiles(t *testing.T) {
	var stdout, stderr strings.Builder
	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Fatalf("expected usage exit 2, got %d", code)
	}

	dir := t.TempDir()
	base := filepath.Join(dir, "old.txt")
	if err := os.WriteFile(base, []byte(baselineOutput), 0o600); err != nil {
		t.Fatalf("write baseline: %v", err)
	}
	slower := filepath.Join(dir, "new.txt")
	if err := os.WriteFile(slower, []byte(strings.Replace(baselineOutput, "10000000 ns/op", "90000000 ns/op", 1)), 0o600); err != nil {
		t.Fatalf("write candidate: %v", err)
	}

	if code := run([]string{"-baseline", base, "-candidate", base}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected clean run, got %d: %s", code, stderr.String())
	}
	if code := run([]string{"-baseline", base, "-candidate", slower}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected regression exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "BenchmarkLogin ns/op regressed") {
		t.Fatalf("expected login regression in stderr, got %q", stderr.String())
	}
	if code := run([]string{"-baseline", filepath.Join(dir, "absent"), "-candidate", base}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected missing file exit 1, got %d", code)
	}
}
