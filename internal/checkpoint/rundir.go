// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint manages the per-run directory tree and the CSV tables
// persisted between pipeline phases. A table file only appears once it is
// fully written, so its existence is the resume signal.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/review-matrix/pkg/types"
)

// Subdirectory names inside a run directory.
const (
	RawDir     = "raw"
	InterimDir = "interim"
	FinalDir   = "final"
)

// Well-known file names.
const (
	ConfigFile     = "config.yaml"
	ManifestFile   = "run.yaml"
	LogFile        = "app.log"
	CumulativeFile = "cumulative_scored.csv"
	FinalMatrix    = "final_review_matrix.csv"
	FallbackFile   = "scored_papers_unthresholded.csv"
	MetricsFile    = "metrics.prom"
	MatrixDBFile   = "review.db"
)

// timestampLayout formats the run directory prefix (YYYYMMDD_HHMMSS).
const timestampLayout = "20060102_150405"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// RunDir is one execution's directory tree.
type RunDir struct {
	Root string
}

// Create makes <dataDir>/<YYYYMMDD_HHMMSS>_<project> with its raw, interim
// and final subdirectories.
func Create(dataDir, project string, now time.Time) (RunDir, error) {
	name := now.Format(timestampLayout) + "_" + unsafeName.ReplaceAllString(project, "_")
	r := RunDir{Root: filepath.Join(dataDir, name)}
	if err := r.ensure(); err != nil {
		return RunDir{}, err
	}
	return r, nil
}

// Open reuses an existing run directory, creating any missing
// subdirectories.
func Open(root string) (RunDir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return RunDir{}, fmt.Errorf("opening run directory: %w", err)
	}
	if !info.IsDir() {
		return RunDir{}, fmt.Errorf("run directory %s is not a directory", root)
	}
	r := RunDir{Root: root}
	if err := r.ensure(); err != nil {
		return RunDir{}, err
	}
	return r, nil
}

func (r RunDir) ensure() error {
	for _, sub := range []string{RawDir, InterimDir, FinalDir} {
		if err := os.MkdirAll(filepath.Join(r.Root, sub), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", sub, err)
		}
	}
	return nil
}

// Path joins elem onto the run root.
func (r RunDir) Path(elem ...string) string {
	return filepath.Join(append([]string{r.Root}, elem...)...)
}

// IterationCandidates is the raw frontier checkpoint of round k.
func (r RunDir) IterationCandidates(k int) string {
	return r.Path(RawDir, fmt.Sprintf("iteration_%d_candidates.csv", k))
}

// IterationScored is the scored checkpoint of round k.
func (r RunDir) IterationScored(k int) string {
	return r.Path(InterimDir, fmt.Sprintf("iteration_%d_scored.csv", k))
}

// Cumulative is the accumulator checkpoint.
func (r RunDir) Cumulative() string { return r.Path(InterimDir, CumulativeFile) }

// FinalMatrix is the extracted review matrix.
func (r RunDir) FinalMatrix() string { return r.Path(FinalDir, FinalMatrix) }

// Fallback is written instead of the matrix when nothing clears the
// screening threshold.
func (r RunDir) Fallback() string { return r.Path(FinalDir, FallbackFile) }

// Metrics is the Prometheus textfile written at the end of a run.
func (r RunDir) Metrics() string { return r.Path(FinalDir, MetricsFile) }

// MatrixDB is the SQLite index of the final matrix.
func (r RunDir) MatrixDB() string { return r.Path(FinalDir, MatrixDBFile) }

// Exists reports whether path is present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// OpenLog opens <run>/app.log for appending.
func (r RunDir) OpenLog() (*os.File, error) {
	f, err := os.OpenFile(r.Path(LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	return f, nil
}

// SaveConfig snapshots the effective configuration as YAML. Credentials are
// excluded by the config types' yaml tags.
func (r RunDir) SaveConfig(cfg types.ReviewConfig) error {
	return writeYAML(r.Path(ConfigFile), cfg)
}

// LoadConfig reads the configuration snapshot of a previous run.
func (r RunDir) LoadConfig() (types.ReviewConfig, error) {
	var cfg types.ReviewConfig
	data, err := os.ReadFile(r.Path(ConfigFile))
	if err != nil {
		return cfg, fmt.Errorf("reading config snapshot: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config snapshot: %w", err)
	}
	return cfg, nil
}

// Run statuses recorded in the manifest.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
)

// Manifest records the identity and progress of a run.
type Manifest struct {
	RunID               string    `yaml:"run_id"`
	Project             string    `yaml:"project"`
	CreatedAt           time.Time `yaml:"created_at"`
	UpdatedAt           time.Time `yaml:"updated_at"`
	Status              string    `yaml:"status"`
	CompletedIterations int       `yaml:"completed_iterations"`
	Artifact            string    `yaml:"artifact,omitempty"`
}

// LoadManifest reads run.yaml, creating a new manifest with a fresh run id
// when none exists.
func (r RunDir) LoadManifest(project string, now time.Time) (Manifest, error) {
	data, err := os.ReadFile(r.Path(ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		m := Manifest{
			RunID:     uuid.NewString(),
			Project:   project,
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
			Status:    StatusRunning,
		}
		return m, r.SaveManifest(m)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

// SaveManifest writes run.yaml.
func (r RunDir) SaveManifest(m Manifest) error {
	return writeYAML(r.Path(ManifestFile), m)
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	return writeAtomic(path, data)
}

// writeAtomic writes data to a temp file next to path and renames it into
// place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
