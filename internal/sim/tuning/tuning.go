package tuning

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gridworld.ai/internal/sim/palette"
)

// NumDiscreteActions is the size of the primitive discrete action enumeration.
const NumDiscreteActions = 18

type Tuning struct {
	Env     Env     `yaml:"env"`
	Dataset Dataset `yaml:"dataset"`
	Record  Record  `yaml:"record"`
}

type Env struct {
	MaxSteps            int     `yaml:"max_steps"`
	RightPlacementScale float64 `yaml:"right_placement_scale"`
	WrongPlacementScale float64 `yaml:"wrong_placement_scale"`
	SelectAndPlace      bool    `yaml:"select_and_place"`
	Discretize          bool    `yaml:"discretize"`

	SizeReward             bool    `yaml:"size_reward"`
	SizeRewardWrongPenalty float64 `yaml:"size_reward_wrong_penalty"`

	// ActionMap maps a reduced action index to a primitive one. Empty means
	// the full enumeration is exposed unchanged.
	ActionMap []int `yaml:"action_map"`

	Spawn             []float64 `yaml:"spawn"`
	InventoryPerColor int       `yaml:"inventory_per_color"`

	// FullTarget trains every turn toward the session's final structure.
	FullTarget bool  `yaml:"full_target"`
	Seed       int64 `yaml:"seed"`
}

type Dataset struct {
	RawDir     string `yaml:"raw_dir"`
	IndexFile  string `yaml:"index_file"`
	BuilderDir string `yaml:"builder_dir"`
	// DataDir receives the dataset snapshot and the sqlite index.
	DataDir string `yaml:"data_dir"`

	GroundLevel       int         `yaml:"ground_level"`
	FallbackColor     int         `yaml:"fallback_color"`
	Palette           map[int]int `yaml:"palette"`
	FixSnapshotCoords bool        `yaml:"fix_snapshot_coords"`
}

type Record struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

func Defaults() Tuning {
	am := make([]int, 0, NumDiscreteActions-1)
	for i := 0; i < NumDiscreteActions-1; i++ {
		am = append(am, i)
	}
	return Tuning{
		Env: Env{
			MaxSteps:               250,
			RightPlacementScale:    1.0,
			WrongPlacementScale:    -0.1,
			SelectAndPlace:         true,
			Discretize:             true,
			SizeReward:             true,
			SizeRewardWrongPenalty: 0.02,
			ActionMap:              am,
			Spawn:                  []float64{0, 1, -3},
			InventoryPerColor:      20,
		},
		Dataset: Dataset{
			RawDir:        "./data/raw",
			IndexFile:     "HitsTable2.csv",
			BuilderDir:    "builder-data",
			DataDir:       "./data",
			GroundLevel:   63,
			FallbackColor: int(palette.DefaultFallback),
			Palette:       defaultPalette(),
		},
		Record: Record{Dir: "./data/episodes"},
	}
}

func defaultPalette() map[int]int {
	p := palette.Default()
	out := map[int]int{}
	for _, raw := range p.RawIDs() {
		out[raw] = int(p.Color(raw))
	}
	return out
}

// Load reads a tuning file over the defaults. An empty path yields defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	d := &t.Dataset
	d.RawDir = strings.TrimSpace(d.RawDir)
	d.IndexFile = strings.TrimSpace(d.IndexFile)
	d.BuilderDir = strings.TrimSpace(d.BuilderDir)
	d.DataDir = strings.TrimSpace(d.DataDir)
	if d.IndexFile == "" {
		d.IndexFile = "HitsTable2.csv"
	}
	if d.BuilderDir == "" {
		d.BuilderDir = "builder-data"
	}
	if len(d.Palette) == 0 {
		d.Palette = defaultPalette()
	}
	if d.FallbackColor == 0 {
		d.FallbackColor = int(palette.DefaultFallback)
	}
	t.Record.Dir = strings.TrimSpace(t.Record.Dir)
	if t.Record.Dir == "" {
		t.Record.Dir = "./data/episodes"
	}
	if len(t.Env.Spawn) == 0 {
		t.Env.Spawn = []float64{0, 1, -3}
	}
}

func (t Tuning) Validate() error {
	e := t.Env
	if e.MaxSteps <= 0 {
		return fmt.Errorf("env.max_steps must be > 0, got %d", e.MaxSteps)
	}
	if e.SizeRewardWrongPenalty < 0 {
		return errors.New("env.size_reward_wrong_penalty must be >= 0")
	}
	if e.InventoryPerColor < 0 {
		return errors.New("env.inventory_per_color must be >= 0")
	}
	if len(e.Spawn) != 3 {
		return fmt.Errorf("env.spawn needs 3 coordinates, got %d", len(e.Spawn))
	}
	seen := map[int]bool{}
	for i, a := range e.ActionMap {
		if a < 0 || a >= NumDiscreteActions {
			return fmt.Errorf("env.action_map[%d]: action %d out of range", i, a)
		}
		if seen[a] {
			return fmt.Errorf("env.action_map[%d]: duplicate action %d", i, a)
		}
		seen[a] = true
	}
	if _, err := t.Dataset.BuildPalette(); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	return nil
}

// BuildPalette turns the configured raw id table into a palette.
func (d Dataset) BuildPalette() (*palette.Palette, error) {
	m := make(map[int]palette.Color, len(d.Palette))
	for raw, c := range d.Palette {
		if c < int(palette.Air) || c > palette.NumColors {
			return nil, fmt.Errorf("palette[%d]: color %d out of range", raw, c)
		}
		m[raw] = palette.Color(c)
	}
	return palette.New(m, palette.Color(d.FallbackColor))
}

// Env override variables.
const (
	EnvRawDir    = "GRIDWORLD_RAW_DIR"
	EnvDataDir   = "GRIDWORLD_DATA_DIR"
	EnvRecordDir = "GRIDWORLD_RECORD_DIR"
)

// ApplyEnv overrides directories from the process environment. getenv is
// usually os.Getenv.
func (t *Tuning) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvRawDir)); v != "" {
		t.Dataset.RawDir = v
	}
	if v := strings.TrimSpace(getenv(EnvDataDir)); v != "" {
		t.Dataset.DataDir = v
	}
	if v := strings.TrimSpace(getenv(EnvRecordDir)); v != "" {
		t.Record.Dir = v
	}
}
