package manifest

import (
	"fmt"

	"github.com/synaptica-ai/phenoxtract/pkg/concept"
	"gopkg.in/yaml.v3"
)

const (
	StrategyAliasMap             = "alias_map"
	StrategyMapping              = "mapping"
	StrategyDateToAge            = "date_to_age"
	StrategyAgeToISO8601         = "age_to_iso8601"
	StrategyMultiHpoColExpansion = "multi_hpo_col_expansion"
	StrategyOntologyNormaliser   = "ontology_normaliser"
)

const (
	MappingSex         = "sex"
	MappingVitalStatus = "vital_status"
)

// MappingConfig selects a built-in synonym table or declares a custom one.
// Synonyms maps each canonical value to the raw spellings that produce it.
type MappingConfig struct {
	Builtin  string              `yaml:"-"`
	Concept  concept.Concept     `yaml:"concept"`
	Synonyms map[string][]string `yaml:"synonyms"`
}

func (m *MappingConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*m = MappingConfig{Builtin: node.Value}
		return nil
	}
	type plain MappingConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*m = MappingConfig(p)
	return nil
}

type NormaliserConfig struct {
	Resource string          `yaml:"resource"`
	Concept  concept.Concept `yaml:"concept"`
}

// StrategyConfig is one entry of transform_strategies. Parameterless
// strategies are written as a scalar, the rest as a single-key map:
//
//	- alias_map
//	- {mapping: sex}
//	- {ontology_normaliser: {resource: hp, concept: hpo}}
type StrategyConfig struct {
	Name       string
	Mapping    *MappingConfig
	Normaliser *NormaliserConfig
}

func (s *StrategyConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = StrategyConfig{Name: node.Value}
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: strategy map must have exactly one key", node.Line)
		}
		name, value := node.Content[0].Value, node.Content[1]
		out := StrategyConfig{Name: name}
		switch name {
		case StrategyMapping:
			out.Mapping = &MappingConfig{}
			if err := value.Decode(out.Mapping); err != nil {
				return err
			}
		case StrategyOntologyNormaliser:
			out.Normaliser = &NormaliserConfig{}
			if err := value.Decode(out.Normaliser); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line %d: strategy %q takes no parameters", node.Line, name)
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("line %d: strategy must be a string or a map", node.Line)
	}
}

func (s StrategyConfig) MarshalYAML() (interface{}, error) {
	switch {
	case s.Mapping != nil && s.Mapping.Builtin != "":
		return map[string]string{s.Name: s.Mapping.Builtin}, nil
	case s.Mapping != nil:
		return map[string]*MappingConfig{s.Name: s.Mapping}, nil
	case s.Normaliser != nil:
		return map[string]*NormaliserConfig{s.Name: s.Normaliser}, nil
	}
	return s.Name, nil
}

func (s StrategyConfig) String() string {
	switch {
	case s.Mapping != nil && s.Mapping.Builtin != "":
		return fmt.Sprintf("%s(%s)", s.Name, s.Mapping.Builtin)
	case s.Mapping != nil:
		return fmt.Sprintf("%s(%s)", s.Name, s.Mapping.Concept)
	case s.Normaliser != nil:
		return fmt.Sprintf("%s(%s,%s)", s.Name, s.Normaliser.Resource, s.Normaliser.Concept)
	}
	return s.Name
}

var knownStrategies = map[string]bool{
	StrategyAliasMap:             true,
	StrategyMapping:              true,
	StrategyDateToAge:            true,
	StrategyAgeToISO8601:         true,
	StrategyMultiHpoColExpansion: true,
	StrategyOntologyNormaliser:   true,
}
