package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/stairclimb/internal/control"
	"github.com/banshee-data/stairclimb/internal/sim"
	"github.com/banshee-data/stairclimb/internal/stair"
	"github.com/banshee-data/stairclimb/internal/structure"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/stairclimb.defaults.json"

// Config is the root configuration of a simulation run. Every field is
// optional; the Get* methods supply defaults for omitted values.
type Config struct {
	Structure *StructureConfig `json:"structure,omitempty"`
	Radii     []float64        `json:"radii,omitempty"`
	Stair     *StairConfig     `json:"stair,omitempty"`

	MaxGap        *float64    `json:"max_gap,omitempty"`
	Speeds        *sim.Speeds `json:"speeds,omitempty"` // length units per second
	ReplaySteps   *int        `json:"replay_steps,omitempty"`
	MaxIterations *int        `json:"max_iterations,omitempty"`
	Anticipate    *bool       `json:"anticipate,omitempty"`
}

// StructureConfig holds the mechanical constants.
type StructureConfig struct {
	A *float64 `json:"a,omitempty"`
	B *float64 `json:"b,omitempty"`
	C *float64 `json:"c,omitempty"`
	D *float64 `json:"d,omitempty"`
	G *float64 `json:"g,omitempty"`
	N *float64 `json:"n,omitempty"`
}

// StairConfig describes the staircase.
type StairConfig struct {
	Steps   []stair.Step `json:"steps"`
	Landing *float64     `json:"landing,omitempty"`
	Exit    *float64     `json:"exit,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }

// EmptyConfig returns a Config with all fields unset.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration describes a buildable run.
func (c *Config) Validate() error {
	if c.Radii != nil && len(c.Radii) != structure.NumActuators {
		return fmt.Errorf("radii must have %d entries, got %d", structure.NumActuators, len(c.Radii))
	}
	if c.MaxGap != nil && !(*c.MaxGap > 0) {
		return fmt.Errorf("max_gap must be positive, got %v", *c.MaxGap)
	}
	if c.ReplaySteps != nil && *c.ReplaySteps < 1 {
		return fmt.Errorf("replay_steps must be at least 1, got %d", *c.ReplaySteps)
	}
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", *c.MaxIterations)
	}
	if err := c.GetSpeeds().Validate(); err != nil {
		return err
	}
	if err := c.GetDimensions().Validate(); err != nil {
		return err
	}
	if _, err := c.GetStair(); err != nil {
		return err
	}
	return nil
}

func getOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// GetDimensions returns the structure constants. Defaults describe a body of
// span 150 with 50 of stroke and 15 radius wheels.
func (c *Config) GetDimensions() structure.Dimensions {
	var sc StructureConfig
	if c.Structure != nil {
		sc = *c.Structure
	}
	d := structure.Dimensions{
		A: getOr(sc.A, 40),
		B: getOr(sc.B, 80),
		C: getOr(sc.C, 30),
		D: getOr(sc.D, 50),
		G: getOr(sc.G, 50),
		N: getOr(sc.N, 0),
	}
	for i := range d.Radii {
		d.Radii[i] = 15
	}
	if len(c.Radii) == structure.NumActuators {
		copy(d.Radii[:], c.Radii)
	}
	return d
}

// GetStair builds the staircase. The default is three 25 high, 100 wide
// steps behind a 100 long floor.
func (c *Config) GetStair() (*stair.Stair, error) {
	if c.Stair == nil {
		return stair.New([]stair.Step{{Count: 3, Width: 100, Height: 25}}, 100, 0)
	}
	return stair.New(c.Stair.Steps, getOr(c.Stair.Landing, 100), getOr(c.Stair.Exit, 0))
}

// GetMaxGap returns the contact tolerance or the default.
func (c *Config) GetMaxGap() float64 {
	return getOr(c.MaxGap, 0.05)
}

// GetSpeeds returns the motion speeds or the defaults.
func (c *Config) GetSpeeds() sim.Speeds {
	if c.Speeds == nil {
		return sim.Speeds{Advance: 100, Elevate: 50, Incline: 25, Actuator: 50}
	}
	return *c.Speeds
}

// GetReplaySteps returns the animation sub-steps per field or the default.
func (c *Config) GetReplaySteps() int {
	if c.ReplaySteps == nil {
		return 10
	}
	return *c.ReplaySteps
}

// GetMaxIterations returns the planner cycle limit or the default.
func (c *Config) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return 500
	}
	return *c.MaxIterations
}

// GetPlannerConfig returns the planner options.
func (c *Config) GetPlannerConfig() control.Config {
	cfg := control.DefaultConfig()
	if c.Anticipate != nil {
		cfg.Anticipate = *c.Anticipate
	}
	return cfg
}

// NewStructure places a structure in front of the configured stair.
func (c *Config) NewStructure() (*structure.Structure, error) {
	s, err := c.GetStair()
	if err != nil {
		return nil, err
	}
	return structure.New(c.GetDimensions(), s, c.GetMaxGap())
}

// WithDimensions returns a copy of c with the structure constants replaced.
// Used by parameter sweeps.
func (c *Config) WithDimensions(d structure.Dimensions) *Config {
	out := *c
	out.Structure = &StructureConfig{
		A: ptrFloat64(d.A),
		B: ptrFloat64(d.B),
		C: ptrFloat64(d.C),
		D: ptrFloat64(d.D),
		G: ptrFloat64(d.G),
		N: ptrFloat64(d.N),
	}
	out.Radii = append([]float64(nil), d.Radii[:]...)
	return &out
}
