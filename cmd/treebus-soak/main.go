// Package main implements the treebus-soak harness. It runs the bus in
// process, generates traffic, and validates the delivery invariants: per
// subscriber ordering, retained replay, overflow isolation, and supervised
// shutdown.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

// Report is the JSON output schema for soak results.
type Report struct {
	RunID           string           `json:"run_id"`
	Seed            uint64           `json:"seed"`
	StartedAt       time.Time        `json:"started_at"`
	EndedAt         time.Time        `json:"ended_at"`
	DurationSeconds float64          `json:"duration_s"`
	ScenarioResults []ScenarioResult `json:"scenario_results"`
	Summary         Summary          `json:"summary"`
}

// ScenarioResult holds the outcome of a single scenario.
type ScenarioResult struct {
	Name         string           `json:"name"`
	Pass         bool             `json:"pass"`
	Reason       string           `json:"reason,omitempty"`
	Observations map[string]int64 `json:"observations"`
	Failures     []Failure        `json:"failures"`
}

// Failure captures a specific invariant violation.
type Failure struct {
	Time    time.Time `json:"time"`
	Rule    string    `json:"rule"`
	Message string    `json:"message"`
}

// Summary provides the aggregate verdict.
type Summary struct {
	PassedScenarios int    `json:"passed_scenarios"`
	FailedScenarios int    `json:"failed_scenarios"`
	Verdict         string `json:"verdict"`
}

// Config holds command-line configuration.
type Config struct {
	Duration    time.Duration
	Seed        uint64
	Profile     string
	Publishers  int
	Subscribers int
	ArtifactDir string
}

func main() {
	cfg := parseFlags()

	if cfg.Seed == 0 {
		// #nosec G115 -- UnixNano is positive until 2262; safe to cast to uint64
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	fmt.Printf("treebus-soak\n")
	fmt.Printf("Seed: %d\n", cfg.Seed)
	fmt.Printf("Profile: %s\n", cfg.Profile)
	fmt.Printf("Duration: %s\n", cfg.Duration)

	rng := rand.New(rand.NewSource(int64(cfg.Seed))) // #nosec G404 -- reproducible soak traffic

	report := Report{
		RunID:     fmt.Sprintf("soak-%d", cfg.Seed),
		Seed:      cfg.Seed,
		StartedAt: time.Now(),
	}

	switch cfg.Profile {
	case "smoke":
		report.ScenarioResults = []ScenarioResult{
			runOrdering(cfg, rng),
			runReplay(cfg),
		}
	case "full":
		report.ScenarioResults = []ScenarioResult{
			runOrdering(cfg, rng),
			runReplay(cfg),
			runOverflow(cfg),
			runStarvation(cfg),
		}
	default:
		fmt.Printf("Unknown profile: %s\n", cfg.Profile)
		os.Exit(1)
	}

	report.EndedAt = time.Now()
	report.DurationSeconds = report.EndedAt.Sub(report.StartedAt).Seconds()

	for _, sr := range report.ScenarioResults {
		if sr.Pass {
			report.Summary.PassedScenarios++
		} else {
			report.Summary.FailedScenarios++
		}
	}
	if report.Summary.FailedScenarios == 0 {
		report.Summary.Verdict = "PASS"
	} else {
		report.Summary.Verdict = "FAIL"
	}

	if err := writeReport(cfg.ArtifactDir, report); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nVerdict: %s (%d passed, %d failed)\n",
		report.Summary.Verdict,
		report.Summary.PassedScenarios,
		report.Summary.FailedScenarios)

	if report.Summary.Verdict != "PASS" {
		os.Exit(1)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "Traffic duration per scenario")
	flag.Uint64Var(&cfg.Seed, "seed", 0, "Random seed (0=random)")
	flag.StringVar(&cfg.Profile, "profile", "smoke", "Profile: smoke|full")
	flag.IntVar(&cfg.Publishers, "publishers", 4, "Concurrent publishers in the ordering scenario")
	flag.IntVar(&cfg.Subscribers, "subscribers", 8, "Subscribers in the ordering scenario")
	flag.StringVar(&cfg.ArtifactDir, "artifact-dir", "./soak-artifacts", "Output directory")

	flag.Parse()
	return cfg
}

func writeReport(dir string, report Report) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	path := fmt.Sprintf("%s/report.json", dir)
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
