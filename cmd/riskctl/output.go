package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/debris-risk/internal/riskapi"
	"github.com/signalsfoundry/debris-risk/model"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output %q (want text, json or yaml)", format)
	}
}

// render writes v as JSON or YAML, or calls text for the human format.
func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

type assessOutput struct {
	Parameters model.ParameterSet   `json:"parameters" yaml:"parameters"`
	Assessment model.RiskAssessment `json:"assessment" yaml:"assessment"`
	Breakdown  *model.Breakdown     `json:"breakdown,omitempty" yaml:"breakdown,omitempty"`
}

func writeAssessmentText(w io.Writer, out assessOutput) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	a := out.Assessment
	fmt.Fprintf(tw, "Collision probability:\t%.4f%%\n", a.ProbabilityPercent)
	fmt.Fprintf(tw, "Risk tier:\t%s\n", a.Tier)
	fmt.Fprintf(tw, "Orbital regime:\t%s\n", a.OrbitalRegime)
	fmt.Fprintf(tw, "Debris environment:\t%s\n", a.DebrisEnvironment)
	fmt.Fprintf(tw, "Mission duration:\t%.2f years\n", a.MissionYears)
	if b := out.Breakdown; b != nil {
		fmt.Fprintf(tw, "\nBase exposure:\t%g\n", b.Base)
		fmt.Fprintf(tw, "Altitude modifier:\t%.4f\n", b.AltitudeModifier)
		fmt.Fprintf(tw, "Inclination modifier:\t%.4f\n", b.InclinationModifier)
		fmt.Fprintf(tw, "Size modifier:\t%.4f\n", b.SizeModifier)
		fmt.Fprintf(tw, "Maneuver modifier:\t%.4f\n", b.ManeuverModifier)
		fmt.Fprintf(tw, "Vulnerability modifier:\t%.4f\n", b.VulnerabilityModifier)
		fmt.Fprintf(tw, "Adjusted:\t%g\n", b.Adjusted)
	}
	return tw.Flush()
}

func writeParametersText(w io.Writer, p model.ParameterSet) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fields := p.Fields()
	for _, name := range model.FieldNames() {
		fmt.Fprintf(tw, "%s\t%g\n", name, fields[name])
	}
	return tw.Flush()
}

func writeOrbitText(w io.Writer, o riskapi.OrbitResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NORAD ID:\t%d\n", o.NoradID)
	fmt.Fprintf(tw, "Epoch:\t%s\n", o.At.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(tw, "Altitude:\t%.1f km\n", o.AltitudeKm)
	fmt.Fprintf(tw, "Inclination:\t%.4f deg\n", o.InclinationDeg)
	fmt.Fprintf(tw, "Osculating inclination:\t%.4f deg\n", o.OsculatingInclinationDeg)
	fmt.Fprintf(tw, "Regime:\t%s\n", o.Regime)
	return tw.Flush()
}

func writeProfilesText(w io.Writer, profiles []riskapi.ProfileSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tORBIT\tPROBABILITY\tTIER")
	for _, p := range profiles {
		name := p.Name
		if strings.TrimSpace(name) == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f%%\t%s\n", p.ID, name, p.OrbitSource, p.Assessment.ProbabilityPercent, p.Assessment.Tier)
	}
	return tw.Flush()
}
