package config

import (
	"fmt"
	"strconv"
)

// kind enumerates the value types a configuration option can carry.
type kind uint8

const (
	boolKind kind = iota
	intKind
	floatKind
	stringKind
)

func (k kind) String() string {
	switch k {
	case boolKind:
		return "bool"
	case intKind:
		return "int"
	case floatKind:
		return "float"
	default:
		return "string"
	}
}

// option declares a single configuration key: its type, default value
// (in INI literal syntax) and optional validation constraints.
type option struct {
	kind       kind
	def        string
	choices    []string // enumerated string values, empty means free-form
	positive   bool     // ints: require > 0
	nonNeg     bool     // require >= 0
	unitOpen   bool     // floats: require 0 < v < 1
	unitClosed bool     // floats: require 0 <= v <= 1
	greaterOne bool     // floats: require v > 1
}

// schema maps section name -> option name -> declaration. It is the
// single source of truth for defaults and for unknown-key detection.
var schema = map[string]map[string]option{
	"Mesh": {
		"mesh_file":        {kind: stringKind, def: ""},
		"gmsh_file":        {kind: stringKind, def: ""},
		"geo_file":         {kind: stringKind, def: ""},
		"remesh":           {kind: boolKind, def: "False"},
		"show_gmsh_output": {kind: boolKind, def: "False"},
	},
	"StateSystem": {
		"is_linear":        {kind: boolKind, def: "False"},
		"newton_rtol":      {kind: floatKind, def: "1e-11", nonNeg: true},
		"newton_atol":      {kind: floatKind, def: "1e-13", nonNeg: true},
		"newton_iter":      {kind: intKind, def: "50", positive: true},
		"newton_damped":    {kind: boolKind, def: "True"},
		"newton_verbose":   {kind: boolKind, def: "False"},
		"picard_iteration": {kind: boolKind, def: "False"},
		"picard_rtol":      {kind: floatKind, def: "1e-10", nonNeg: true},
		"picard_atol":      {kind: floatKind, def: "1e-12", nonNeg: true},
		"picard_iter":      {kind: intKind, def: "50", positive: true},
		"picard_verbose":   {kind: boolKind, def: "False"},
	},
	"OptimizationRoutine": {
		"algorithm":          {kind: stringKind, def: "gd", choices: []string{"gd", "lbfgs", "cg", "tnm", "pdas"}},
		"rtol":               {kind: floatKind, def: "1e-3", nonNeg: true},
		"atol":               {kind: floatKind, def: "0.0", nonNeg: true},
		"maximum_iterations": {kind: intKind, def: "100", positive: true},
		"initial_stepsize":   {kind: floatKind, def: "1.0", nonNeg: true},
		"epsilon_armijo":     {kind: floatKind, def: "1e-4", unitOpen: true},
		"beta_armijo":        {kind: floatKind, def: "2.0", greaterOne: true},
		"soft_exit":          {kind: boolKind, def: "False"},
	},
	"AlgoLBFGS": {
		"bfgs_memory_size": {kind: intKind, def: "5", nonNeg: true},
		"use_bfgs_scaling": {kind: boolKind, def: "True"},
	},
	"AlgoCG": {
		"cg_method":           {kind: stringKind, def: "FR", choices: []string{"FR", "PR", "HS", "DY"}},
		"cg_periodic_restart": {kind: boolKind, def: "False"},
		"cg_periodic_its":     {kind: intKind, def: "10", positive: true},
		"cg_relative_restart": {kind: boolKind, def: "False"},
		"cg_restart_tol":      {kind: floatKind, def: "0.25", nonNeg: true},
	},
	"AlgoTNM": {
		"inner_newton":           {kind: stringKind, def: "cg", choices: []string{"cg", "cr"}},
		"inner_newton_tolerance": {kind: floatKind, def: "1e-10", nonNeg: true},
		"max_it_inner_newton":    {kind: intKind, def: "50", positive: true},
	},
	"AlgoPDAS": {
		"inner_pdas":                    {kind: stringKind, def: "lbfgs", choices: []string{"gd", "lbfgs", "cg"}},
		"pdas_inner_tolerance":          {kind: floatKind, def: "1e-2", nonNeg: true},
		"maximum_iterations_inner_pdas": {kind: intKind, def: "50", positive: true},
		"pdas_regularization_parameter": {kind: floatKind, def: "1.0", nonNeg: true},
	},
	"Output": {
		"verbose":      {kind: boolKind, def: "True"},
		"save_results": {kind: boolKind, def: "True"},
		"result_dir":   {kind: stringKind, def: "./results"},
	},
}

// parseValue converts the raw INI literal according to the option
// declaration. The returned value is bool, int64, float64 or string.
func (o option) parseValue(raw string) (interface{}, error) {
	switch o.kind {
	case boolKind:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as bool", raw)
		}
		return v, nil
	case intKind:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as int", raw)
		}
		if o.positive && v <= 0 {
			return nil, fmt.Errorf("value %d must be positive", v)
		}
		if o.nonNeg && v < 0 {
			return nil, fmt.Errorf("value %d must be non-negative", v)
		}
		return v, nil
	case floatKind:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as float", raw)
		}
		if o.nonNeg && v < 0 {
			return nil, fmt.Errorf("value %g must be non-negative", v)
		}
		if o.unitOpen && !(v > 0 && v < 1) {
			return nil, fmt.Errorf("value %g must lie in (0, 1)", v)
		}
		if o.unitClosed && !(v >= 0 && v <= 1) {
			return nil, fmt.Errorf("value %g must lie in [0, 1]", v)
		}
		if o.greaterOne && v <= 1 {
			return nil, fmt.Errorf("value %g must be greater than 1", v)
		}
		return v, nil
	default:
		for _, c := range o.choices {
			if raw == c {
				return raw, nil
			}
		}
		if len(o.choices) > 0 {
			return nil, fmt.Errorf("value %q is not one of %v", raw, o.choices)
		}
		return raw, nil
	}
}
