package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/minicc/minicc/pkg/compiler"
	"github.com/minicc/minicc/pkg/config"
	"github.com/minicc/minicc/pkg/testcase"
)

type CaseResult struct {
	File        string        `json:"file"`
	Name        string        `json:"name"`
	Line        int           `json:"line"`
	Status      string        `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message     string        `json:"message,omitempty"`
	Diff        string        `json:"diff,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Duration    time.Duration `json:"duration"`
}

func (r *CaseResult) Key() string { return fmt.Sprintf("%s:%d", r.File, r.Line) }

type TestSuiteResults map[string]*CaseResult

type task struct {
	file string
	tc   testcase.TestCase
}

var (
	testFiles  = flag.String("test-files", "testdata/*.md", "Glob pattern(s) for markdown corpora (space-separated).")
	runFilter  = flag.String("run", "", "Only run test cases whose name contains this substring.")
	outputJSON = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout    = flag.Duration("timeout", 5*time.Second, "Timeout for each program execution.")
	jobs       = flag.Int("j", 4, "Number of parallel test jobs.")
	noExec     = flag.Bool("no-exec", false, "Do not link or run programs; skip exit-code and stdout assertions.")
	entry      = flag.String("entry", config.EntryStart, "Symbol main is emitted under (_start, main).")
	verbose    = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *jobs < 1 {
		*jobs = 1
	}
	if err := config.NewConfig().SetEntry(*entry); err != nil {
		log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
	}

	// Single tempDir for all linked programs
	tempDir, err := os.MkdirTemp("", "mtest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results := runTestSuite(ctx, tempDir)
	if ctx.Err() != nil {
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled.\n", cYellow, cNone)
	}

	printSummary(results)
	resultsMap := writeJSONReport(results)
	if hasFailures(resultsMap) || ctx.Err() != nil {
		os.RemoveAll(tempDir)
		os.Exit(1)
	}
}

func runTestSuite(ctx context.Context, tempDir string) []*CaseResult {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return nil
	}

	execution := compiler.ExecNone
	if !*noExec {
		execution = compiler.ProbeExecution(ctx, tempDir)
		switch execution {
		case compiler.ExecNone:
			log.Printf("%s[WARN]%s No 32-bit assembler or linker found. Execution assertions will be skipped.\n", cYellow, cNone)
		case compiler.ExecFreestanding:
			log.Printf("%s[WARN]%s 'cc -m32' unavailable, linking with 'as' and 'ld'. Programs that use libc will be skipped.\n", cYellow, cNone)
		}
	}
	runner := &testcase.Runner{
		WorkDir: tempDir,
		Exec:    execution,
		Timeout: *timeout,
		Config: func() *config.Config {
			cfg := config.NewConfig()
			cfg.SetEntry(*entry)
			return cfg
		},
	}

	var allResults []*CaseResult
	var tasks []task
	seenHashes := make(map[uint64]string)
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			allResults = append(allResults, &CaseResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file: %v", err)})
			continue
		}
		cases, err := testcase.Extract(data)
		if err != nil {
			allResults = append(allResults, &CaseResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Malformed corpus: %v", err)})
			continue
		}
		for _, tc := range cases {
			if *runFilter != "" && !strings.Contains(tc.Name, *runFilter) {
				continue
			}
			// Identical program, input and assertions need to run only once
			h := hashCase(tc)
			if original, seen := seenHashes[h]; seen {
				allResults = append(allResults, &CaseResult{File: file, Name: tc.Name, Line: tc.Line, Status: "SKIP", Message: fmt.Sprintf("Identical to %s", original)})
				continue
			}
			seenHashes[h] = fmt.Sprintf("%s:%d", filepath.Base(file), tc.Line)
			tasks = append(tasks, task{file: file, tc: tc})
		}
	}

	taskChan := make(chan task, len(tasks))
	resultsChan := make(chan *CaseResult, len(tasks))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskChan {
				if ctx.Err() != nil {
					resultsChan <- &CaseResult{File: t.file, Name: t.tc.Name, Line: t.tc.Line, Status: "SKIP", Message: "Interrupted"}
					continue
				}
				resultsChan <- testCase(ctx, runner, t)
			}
		}()
	}
	for _, t := range tasks {
		taskChan <- t
	}
	close(taskChan)

	wg.Wait()
	close(resultsChan)

	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		if allResults[i].File != allResults[j].File {
			return allResults[i].File < allResults[j].File
		}
		return allResults[i].Line < allResults[j].Line
	})
	return allResults
}

func testCase(ctx context.Context, runner *testcase.Runner, t task) *CaseResult {
	if *verbose {
		log.Printf("[%s] running '%s'", filepath.Base(t.file), t.tc.Name)
	}
	out := runner.Run(ctx, t.tc)
	result := &CaseResult{File: t.file, Name: t.tc.Name, Line: t.tc.Line, Duration: out.Duration}
	if out.Fingerprint != 0 {
		result.Fingerprint = fmt.Sprintf("%016x", out.Fingerprint)
	}
	switch {
	case len(out.Failures) > 0:
		result.Status = "FAIL"
		result.Message = fmt.Sprintf("%d assertion(s) failed", len(out.Failures))
		result.Diff = strings.Join(out.Failures, "\n")
	case out.Skipped != "":
		result.Status = "SKIP"
		result.Message = out.Skipped
	default:
		result.Status = "PASS"
		result.Message = fmt.Sprintf("%d assertion(s) passed", len(t.tc.Assertions))
	}
	return result
}

// hashCase computes the xxhash of everything that determines a case's outcome.
func hashCase(tc testcase.TestCase) uint64 {
	h := xxhash.New()
	h.WriteString(tc.Input)
	h.WriteString("\x00")
	h.WriteString(tc.Stdin)
	for _, a := range tc.Assertions {
		h.WriteString("\x00" + string(a.Type) + "\x00" + a.Content)
	}
	return h.Sum64()
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.Round(time.Microsecond).String()
	}
	return d.Round(100 * time.Microsecond).String()
}

func printSummary(results []*CaseResult) {
	var passed, failed, skipped, errored int
	var total time.Duration
	fmt.Println("----------------------------------------------------------------------")
	for _, result := range results {
		total += result.Duration
		var statusColor string
		switch result.Status {
		case "PASS":
			passed++
			statusColor = cGreen
		case "FAIL":
			failed++
			statusColor = cRed
		case "SKIP":
			skipped++
			statusColor = cYellow
		default:
			errored++
			statusColor = cRed
		}

		name := filepath.Base(result.File)
		if result.Name != "" {
			name = fmt.Sprintf("%s:%d %s", name, result.Line, result.Name)
		}
		if result.Status == "PASS" && !*verbose {
			fmt.Printf("%s[%s]%s %s %s(%s)%s\n", statusColor, result.Status, cNone, name, cCyan, formatDuration(result.Duration), cNone)
			continue
		}
		fmt.Printf("%s[%s]%s %s: %s\n", statusColor, result.Status, cNone, name, result.Message)
		fmt.Print(formatDiff(result.Diff))
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%s Passed%s, %s%s Failed%s, %s%s Skipped%s, %s%s Errored%s, %s Total in %s\n",
		cBold, cNone,
		cGreen, humanize.Comma(int64(passed)), cNone,
		cRed, humanize.Comma(int64(failed)), cNone,
		cYellow, humanize.Comma(int64(skipped)), cNone,
		cRed, humanize.Comma(int64(errored)), cNone,
		humanize.Comma(int64(len(results))), formatDuration(total))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*CaseResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.Key()] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}
	if err := os.WriteFile(*outputJSON, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, *outputJSON, err)
	} else {
		fmt.Printf("Full test report (%s) saved to %s\n", humanize.Bytes(uint64(len(jsonData))), *outputJSON)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
