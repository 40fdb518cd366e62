package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/extcall/internal/ir"
)

// ScenarioOutcome is the result of one scenario file of a suite.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	Result *Result `json:"-"`
}

// Summary aggregates a suite run.
type Summary struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

// Failures returns the failed scenarios.
func (s *Summary) Failures() []ScenarioOutcome {
	var out []ScenarioOutcome
	for _, sc := range s.Scenarios {
		if !sc.Pass {
			out = append(out, sc)
		}
	}
	return out
}

// FindScenarios lists the YAML files under dir whose base name (without
// extension) matches the glob filter. An empty filter matches all.
func FindScenarios(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if ok, _ := filepath.Match(filter, name); !ok {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// RunFile loads and runs one scenario file. Load and execution failures
// are reported as a failed outcome.
func RunFile(ctx context.Context, path string) ScenarioOutcome {
	out := ScenarioOutcome{Name: filepath.Base(path), File: path}

	scenario, err := LoadScenario(path)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return out
	}
	out.Name = scenario.Name

	result, err := Run(ctx, scenario)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return out
	}

	out.Result = result
	out.Pass = result.Pass
	out.Errors = result.Errors
	return out
}

// RunSuite runs every scenario under dir matching filter, one at a time.
func RunSuite(ctx context.Context, dir, filter string) (*Summary, error) {
	return RunSuiteParallel(ctx, dir, filter, 1)
}

// RunSuiteParallel runs the scenarios under dir matching filter on up to
// workers goroutines. Scenarios share nothing, each runs its own engine
// from its own initial memory. Outcomes keep file order.
//
// On cancellation the summary holds the scenarios that finished.
func RunSuiteParallel(ctx context.Context, dir, filter string, workers int) (*Summary, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("scenarios directory: %w", err)
	}
	files, err := FindScenarios(dir, filter)
	if err != nil {
		return nil, err
	}

	outcomes := make([]ScenarioOutcome, len(files))
	done := make([]bool, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = RunFile(gctx, f)
			done[i] = true
			return nil
		})
	}
	waitErr := g.Wait()

	summary := &Summary{
		Scenarios: make([]ScenarioOutcome, 0, len(files)),
		Total:     len(files),
	}
	for i, out := range outcomes {
		if !done[i] {
			continue
		}
		summary.Scenarios = append(summary.Scenarios, out)
		if out.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary, waitErr
}

// MarshalSnapshot returns the canonical JSON golden form of a result.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := NewTraceSnapshot(name, result)
	return ir.MarshalCanonical(snapshot.toCanonical())
}
