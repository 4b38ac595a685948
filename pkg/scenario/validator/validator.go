// Package validator performs scenario-file-level sanity checks ahead
// of submission — catching malformed references early rather than
// waiting on the daemon's CHECK_EMOE round trip. Adapted from the
// teacher's pkg/scenario/validator package shape (Warnings/Errors
// accumulation, GetReport rendering) but re-targeted at EMOE scenario
// semantics.
package validator

import (
	"fmt"
	"strings"

	"github.com/adjacentlink/emexd/pkg/scenario"
)

// Validator accumulates warnings (non-fatal) and errors (fatal)
// found while checking a scenario.File.
type Validator struct {
	Warnings []string
	Errors   []string
}

// New creates a new validator.
func New() *Validator {
	return &Validator{Warnings: make([]string, 0), Errors: make([]string, 0)}
}

// Validate checks f for internally-inconsistent references. It
// resets Warnings/Errors on every call.
func (v *Validator) Validate(f *scenario.File) error {
	v.Warnings = v.Warnings[:0]
	v.Errors = v.Errors[:0]

	platformNames := make(map[string]bool)
	for i, ps := range f.Emoe.Platforms {
		if ps.Name == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("emoe.platforms[%d].name is required", i))
			continue
		}
		if ps.Template == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("emoe.platforms[%d].template is required", i))
		}
		if platformNames[ps.Name] {
			v.Errors = append(v.Errors, fmt.Sprintf("emoe.platforms[%d].name %q is duplicated", i, ps.Name))
		}
		platformNames[ps.Name] = true
	}

	antennaNames := make(map[string]bool)
	for i, as := range f.Emoe.Antennas {
		if as.Name == "" || as.Type == "" {
			v.Errors = append(v.Errors, fmt.Sprintf("emoe.antennas[%d] requires both name and type", i))
			continue
		}
		antennaNames[as.Name] = true
	}

	for i, ic := range f.Emoe.InitialConditions {
		if !platformNames[ic.Platform] {
			v.Errors = append(v.Errors, fmt.Sprintf("emoe.initial_conditions[%d] references unknown platform %q", i, ic.Platform))
		}
		switch ic.Kind {
		case "pov", "antenna_pointing":
		case "":
			v.Errors = append(v.Errors, fmt.Sprintf("emoe.initial_conditions[%d].kind is required", i))
		default:
			v.Warnings = append(v.Warnings, fmt.Sprintf("emoe.initial_conditions[%d].kind %q is not one of the known kinds (pov, antenna_pointing)", i, ic.Kind))
		}
		if ic.Kind == "antenna_pointing" && ic.AntennaName != "" && !antennaNames[ic.AntennaName] {
			v.Errors = append(v.Errors, fmt.Sprintf("emoe.initial_conditions[%d] references unknown antenna %q", i, ic.AntennaName))
		}
	}

	if len(f.Events) == 0 {
		v.Warnings = append(v.Warnings, "scenario has no events section — nothing will be driven after start")
	}

	if len(v.Errors) > 0 {
		return fmt.Errorf("validation failed with %d errors", len(v.Errors))
	}
	return nil
}

// HasWarnings reports whether the last Validate call found warnings.
func (v *Validator) HasWarnings() bool { return len(v.Warnings) > 0 }

// HasErrors reports whether the last Validate call found errors.
func (v *Validator) HasErrors() bool { return len(v.Errors) > 0 }

// GetReport renders a human-readable validation report.
func (v *Validator) GetReport() string {
	var sb strings.Builder

	if len(v.Errors) > 0 {
		sb.WriteString("ERRORS:\n")
		for _, err := range v.Errors {
			sb.WriteString(fmt.Sprintf("  - %s\n", err))
		}
	}
	if len(v.Warnings) > 0 {
		sb.WriteString("\nWARNINGS:\n")
		for _, warn := range v.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}
	if len(v.Errors) == 0 && len(v.Warnings) == 0 {
		sb.WriteString("Validation passed with no issues.\n")
	}

	return sb.String()
}
