package manifest

import (
	"os"
	"strings"
)

const (
	ResourceCatalog  = "catalog"
	ResourceOBOGraph = "obo_graph"
	ResourceRemote   = "remote"
)

// ResourceConfig declares an ontology or vocabulary the run may consult.
// Prefix is the CURIE prefix of its term ids, e.g. "HP" for "HP:0001250".
type ResourceConfig struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Prefix   string   `yaml:"prefix"`
	Version  string   `yaml:"version"`
	Type     string   `yaml:"type"`
	Path     string   `yaml:"path"`
	URL      string   `yaml:"url"`
	IRI      string   `yaml:"iri"`
	Concepts []string `yaml:"concepts"`
	Secrets  Secrets  `yaml:"secrets"`
}

// Secrets holds vocabulary credentials. Values of the form "env:NAME" are
// read from the environment when resolved.
type Secrets struct {
	Token    string `yaml:"token"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	TokenURL string `yaml:"token_url"`
}

func (s Secrets) Resolve() Secrets {
	return Secrets{
		Token:    resolveSecret(s.Token),
		User:     resolveSecret(s.User),
		Password: resolveSecret(s.Password),
		ClientID: resolveSecret(s.ClientID),
		TokenURL: s.TokenURL,
	}
}

func resolveSecret(v string) string {
	if name, ok := strings.CutPrefix(v, "env:"); ok {
		return os.Getenv(strings.TrimSpace(name))
	}
	return v
}

// ServesConcept reports whether the resource is the default lookup for the
// given concept kind.
func (r ResourceConfig) ServesConcept(kind string) bool {
	for _, c := range r.Concepts {
		if strings.EqualFold(c, kind) {
			return true
		}
	}
	return false
}
