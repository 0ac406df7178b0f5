// Package config loads and validates the INI-style configuration that
// drives the state solver, the optimization routine and the output
// behavior. Option names are validated against a fixed schema per
// section; omitted options take their documented defaults.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Error describes an invalid, unknown or malformed configuration
// entry. Option is empty when the whole section is at fault.
type Error struct {
	Section string
	Option  string
	Reason  string
}

func (e *Error) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("config: section [%s]: %s", e.Section, e.Reason)
	}
	return fmt.Sprintf("config: option %s in section [%s]: %s", e.Option, e.Section, e.Reason)
}

// MeshConfig collects the [Mesh] section.
type MeshConfig struct {
	MeshFile       string
	GmshFile       string
	GeoFile        string
	Remesh         bool
	ShowGmshOutput bool
}

// StateConfig collects the [StateSystem] section governing the
// nonlinear state solve.
type StateConfig struct {
	IsLinear        bool
	NewtonRtol      float64
	NewtonAtol      float64
	NewtonIter      int
	NewtonDamped    bool
	NewtonVerbose   bool
	PicardIteration bool
	PicardRtol      float64
	PicardAtol      float64
	PicardIter      int
	PicardVerbose   bool
}

// RoutineConfig collects the [OptimizationRoutine] section.
type RoutineConfig struct {
	Algorithm         string
	Rtol              float64
	Atol              float64
	MaximumIterations int
	InitialStepsize   float64
	EpsilonArmijo     float64
	BetaArmijo        float64
	SoftExit          bool
}

// LBFGSConfig collects the [AlgoLBFGS] section.
type LBFGSConfig struct {
	MemorySize int
	UseScaling bool
}

// CGConfig collects the [AlgoCG] section.
type CGConfig struct {
	Method          string
	PeriodicRestart bool
	PeriodicIts     int
	RelativeRestart bool
	RestartTol      float64
}

// TNMConfig collects the [AlgoTNM] section.
type TNMConfig struct {
	InnerNewton    string
	InnerTolerance float64
	MaxInnerIts    int
}

// PDASConfig collects the [AlgoPDAS] section.
type PDASConfig struct {
	InnerSolver             string
	InnerTolerance          float64
	MaxInnerIts             int
	RegularizationParameter float64
}

// OutputConfig collects the [Output] section.
type OutputConfig struct {
	Verbose     bool
	SaveResults bool
	ResultDir   string
}

// Config is the validated settings object for one optimization run.
type Config struct {
	Mesh    MeshConfig
	State   StateConfig
	Routine RoutineConfig
	LBFGS   LBFGSConfig
	CG      CGConfig
	TNM     TNMConfig
	PDAS    PDASConfig
	Output  OutputConfig
}

// Default returns a Config populated with the documented default value
// of every option, equivalent to loading an empty file.
func Default() *Config {
	cfg, err := Load([]byte{})
	if err != nil {
		panic(err) // schema defaults must always parse
	}
	return cfg
}

// LoadFile reads and validates a configuration file from disk.
func LoadFile(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return fromFile(f)
}

// Load reads and validates a configuration from an in-memory source.
func Load(source []byte) (*Config, error) {
	f, err := ini.Load(source)
	if err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	return fromFile(f)
}

// fromFile validates the parsed INI file against the schema and
// resolves every option to its typed value.
func fromFile(f *ini.File) (*Config, error) {
	values := make(map[string]map[string]interface{}, len(schema))

	for _, sec := range f.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection {
			if len(sec.Keys()) > 0 {
				return nil, &Error{Section: name, Reason: "options outside of any section"}
			}
			continue
		}
		opts, ok := schema[name]
		if !ok {
			return nil, &Error{Section: name, Reason: "unknown section"}
		}
		secValues := make(map[string]interface{})
		for _, key := range sec.Keys() {
			decl, ok := opts[key.Name()]
			if !ok {
				return nil, &Error{Section: name, Option: key.Name(), Reason: "unknown option"}
			}
			v, err := decl.parseValue(key.Value())
			if err != nil {
				return nil, &Error{Section: name, Option: key.Name(), Reason: err.Error()}
			}
			secValues[key.Name()] = v
		}
		values[name] = secValues
	}

	// Fill in defaults for everything left unset.
	for secName, opts := range schema {
		if _, ok := values[secName]; !ok {
			values[secName] = make(map[string]interface{})
		}
		for optName, decl := range opts {
			if _, ok := values[secName][optName]; ok {
				continue
			}
			v, err := decl.parseValue(decl.def)
			if err != nil {
				return nil, &Error{Section: secName, Option: optName, Reason: "invalid default: " + err.Error()}
			}
			values[secName][optName] = v
		}
	}

	cfg := &Config{}
	cfg.assign(values)
	return cfg, nil
}

func (c *Config) assign(v map[string]map[string]interface{}) {
	m := v["Mesh"]
	c.Mesh = MeshConfig{
		MeshFile:       m["mesh_file"].(string),
		GmshFile:       m["gmsh_file"].(string),
		GeoFile:        m["geo_file"].(string),
		Remesh:         m["remesh"].(bool),
		ShowGmshOutput: m["show_gmsh_output"].(bool),
	}
	s := v["StateSystem"]
	c.State = StateConfig{
		IsLinear:        s["is_linear"].(bool),
		NewtonRtol:      s["newton_rtol"].(float64),
		NewtonAtol:      s["newton_atol"].(float64),
		NewtonIter:      int(s["newton_iter"].(int64)),
		NewtonDamped:    s["newton_damped"].(bool),
		NewtonVerbose:   s["newton_verbose"].(bool),
		PicardIteration: s["picard_iteration"].(bool),
		PicardRtol:      s["picard_rtol"].(float64),
		PicardAtol:      s["picard_atol"].(float64),
		PicardIter:      int(s["picard_iter"].(int64)),
		PicardVerbose:   s["picard_verbose"].(bool),
	}
	r := v["OptimizationRoutine"]
	c.Routine = RoutineConfig{
		Algorithm:         r["algorithm"].(string),
		Rtol:              r["rtol"].(float64),
		Atol:              r["atol"].(float64),
		MaximumIterations: int(r["maximum_iterations"].(int64)),
		InitialStepsize:   r["initial_stepsize"].(float64),
		EpsilonArmijo:     r["epsilon_armijo"].(float64),
		BetaArmijo:        r["beta_armijo"].(float64),
		SoftExit:          r["soft_exit"].(bool),
	}
	l := v["AlgoLBFGS"]
	c.LBFGS = LBFGSConfig{
		MemorySize: int(l["bfgs_memory_size"].(int64)),
		UseScaling: l["use_bfgs_scaling"].(bool),
	}
	g := v["AlgoCG"]
	c.CG = CGConfig{
		Method:          g["cg_method"].(string),
		PeriodicRestart: g["cg_periodic_restart"].(bool),
		PeriodicIts:     int(g["cg_periodic_its"].(int64)),
		RelativeRestart: g["cg_relative_restart"].(bool),
		RestartTol:      g["cg_restart_tol"].(float64),
	}
	t := v["AlgoTNM"]
	c.TNM = TNMConfig{
		InnerNewton:    t["inner_newton"].(string),
		InnerTolerance: t["inner_newton_tolerance"].(float64),
		MaxInnerIts:    int(t["max_it_inner_newton"].(int64)),
	}
	p := v["AlgoPDAS"]
	c.PDAS = PDASConfig{
		InnerSolver:             p["inner_pdas"].(string),
		InnerTolerance:          p["pdas_inner_tolerance"].(float64),
		MaxInnerIts:             int(p["maximum_iterations_inner_pdas"].(int64)),
		RegularizationParameter: p["pdas_regularization_parameter"].(float64),
	}
	o := v["Output"]
	c.Output = OutputConfig{
		Verbose:     o["verbose"].(bool),
		SaveResults: o["save_results"].(bool),
		ResultDir:   o["result_dir"].(string),
	}
}
