package concept

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type measurementParams struct {
	AssayID string `yaml:"assay_id"`
	UnitID  string `yaml:"unit_id"`
}

// UnmarshalYAML accepts either a scalar ("hpo", "onset_age") or a single-key
// map whose value carries the parameters:
//
//	{onset: age}
//	{reference_range: upper}
//	{quantitative_measurement: {assay_id: "LOINC:2345-7", unit_id: "UO:0000022"}}
func (c *Concept) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		parsed, err := Parse(s)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*c = parsed
		return nil

	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: concept map must have exactly one key", node.Line)
		}
		key, value := node.Content[0], node.Content[1]
		parsed := Concept{Kind: Kind(strings.ToLower(strings.TrimSpace(key.Value)))}
		sp, ok := kinds[parsed.Kind]
		if !ok {
			return fmt.Errorf("line %d: unknown concept %q", key.Line, key.Value)
		}

		switch {
		case sp.timed:
			parsed.Time = TimeElement(strings.ToLower(value.Value))
		case sp.boundary:
			parsed.Boundary = Boundary(strings.ToLower(value.Value))
		case sp.assay:
			if value.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: concept %q expects a map with assay_id", value.Line, key.Value)
			}
			var params measurementParams
			if err := value.Decode(&params); err != nil {
				return err
			}
			parsed.AssayID = strings.TrimSpace(params.AssayID)
			parsed.UnitID = strings.TrimSpace(params.UnitID)
			if !sp.unit && parsed.UnitID != "" {
				return fmt.Errorf("line %d: concept %q does not take unit_id", value.Line, key.Value)
			}
		default:
			return fmt.Errorf("line %d: concept %q takes no parameters", key.Line, key.Value)
		}

		if err := parsed.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*c = parsed
		return nil

	default:
		return fmt.Errorf("line %d: concept must be a string or a map", node.Line)
	}
}

func (c Concept) MarshalYAML() (interface{}, error) {
	kind := string(c.Kind)
	if kind == "" {
		kind = string(None)
	}
	switch {
	case c.Time != "":
		return map[string]string{kind: string(c.Time)}, nil
	case c.Boundary != "":
		return map[string]string{kind: string(c.Boundary)}, nil
	case c.AssayID != "":
		return map[string]measurementParams{kind: {AssayID: c.AssayID, UnitID: c.UnitID}}, nil
	}
	return kind, nil
}
