package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/san-kum/cartpole/internal/dynamo"
	"github.com/san-kum/cartpole/internal/rollout"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
)

// ErrRunNotFound is returned when a run directory has no metadata.
var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
	logger  *zap.Logger
}

func New(baseDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{baseDir: baseDir, logger: logger}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes a stored batch of episodes. The trajectory file
// holds the first episode of the batch.
type RunMetadata struct {
	ID         string             `json:"id"`
	Preset     string             `json:"preset"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	Integrator string             `json:"integrator"`
	Policy     string             `json:"policy"`
	Strict     bool               `json:"strict"`
	Episodes   int                `json:"episodes"`
	Steps      int                `json:"steps"`
	MeanReturn float64            `json:"mean_return"`
	StdReturn  float64            `json:"std_return"`
	Terminated int                `json:"terminated"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes meta and ep under a new run directory and returns the run
// ID. meta.ID and meta.Timestamp are filled in.
func (s *Store) Save(meta RunMetadata, ep *rollout.Episode) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = time.Now()
	if ep != nil {
		meta.Steps = ep.Length
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeTrajectory(filepath.Join(runDir, trajectoryFile), ep); err != nil {
		return "", err
	}

	s.logger.Info("storage.saved",
		zap.String("run", meta.ID),
		zap.String("dir", runDir),
		zap.Int("steps", meta.Steps),
	)
	return meta.ID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeTrajectory writes one row per state. Row 0 is the reset state;
// row i>0 carries the action that produced state i and the reward and done
// flag returned with it.
func writeTrajectory(path string, ep *rollout.Episode) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if ep == nil || len(ep.States) == 0 {
		w.Flush()
		return w.Error()
	}

	header := []string{"time"}
	for i := range ep.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	header = append(header, "u0", "reward", "done")
	if err := w.Write(header); err != nil {
		return err
	}

	for i, state := range ep.States {
		row := []string{formatFloat(ep.Times[i])}
		for _, val := range state {
			row = append(row, formatFloat(val))
		}
		if i == 0 {
			row = append(row, "0", "0", "false")
		} else {
			row = append(row,
				formatFloat(ep.Actions[i-1]),
				formatFloat(ep.Rewards[i-1]),
				strconv.FormatBool(ep.Dones[i-1]),
			)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns stored runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadTrajectory reads a stored trajectory back into an episode.
func (s *Store) LoadTrajectory(runID string) (*rollout.Episode, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	ep := &rollout.Episode{Metrics: make(map[string]float64)}
	if len(records) < 2 {
		return ep, nil
	}

	dim := len(records[0]) - 4
	if dim < 1 {
		return nil, fmt.Errorf("run %s: %w: header has %d columns", runID, dynamo.ErrDimensionMismatch, len(records[0]))
	}

	for i, record := range records[1:] {
		vals := make([]float64, 0, dim+3)
		for _, field := range record[:dim+3] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s row %d: %w", runID, i+1, err)
			}
			vals = append(vals, v)
		}
		done, err := strconv.ParseBool(record[dim+3])
		if err != nil {
			return nil, fmt.Errorf("run %s row %d: %w", runID, i+1, err)
		}

		ep.Times = append(ep.Times, vals[0])
		ep.States = append(ep.States, dynamo.State(vals[1:dim+1]))
		if i == 0 {
			continue
		}
		reward := vals[dim+2]
		ep.Actions = append(ep.Actions, vals[dim+1])
		ep.Rewards = append(ep.Rewards, reward)
		ep.Dones = append(ep.Dones, done)
		ep.Return += reward
		ep.Length++
		if done {
			ep.Terminated = true
		}
	}
	return ep, nil
}
