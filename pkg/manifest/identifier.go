package manifest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Identifier names the columns a context applies to. A scalar is an exact
// header or, failing that, a regular expression; a sequence is a list of
// exact headers.
type Identifier struct {
	Values []string
	List   bool
}

func Single(pattern string) Identifier {
	return Identifier{Values: []string{pattern}}
}

func List(names ...string) Identifier {
	return Identifier{Values: names, List: true}
}

func (id Identifier) String() string {
	if id.List {
		return "[" + strings.Join(id.Values, ", ") + "]"
	}
	if len(id.Values) == 0 {
		return ""
	}
	return id.Values[0]
}

func (id Identifier) IsZero() bool {
	return len(id.Values) == 0
}

// UnmarshalYAML accepts a single string or an array of strings.
func (id *Identifier) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*id = Identifier{}
		if s != "" {
			id.Values = []string{s}
		}
		return nil

	case yaml.SequenceNode:
		var arr []string
		if err := node.Decode(&arr); err != nil {
			return err
		}
		*id = Identifier{Values: arr, List: true}
		return nil

	default:
		return fmt.Errorf("line %d: identifier must be a string or a list of strings", node.Line)
	}
}

func (id Identifier) MarshalYAML() (interface{}, error) {
	if id.List {
		return id.Values, nil
	}
	return id.String(), nil
}
