package ontology

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Graph is a term index read from an OBO-graph JSON release such as hp.json.
// It keeps the is_a hierarchy between the indexed classes.
type Graph struct {
	*index
	parents map[string][]string
}

type oboDocument struct {
	Graphs []oboGraph `json:"graphs"`
}

type oboGraph struct {
	ID    string    `json:"id"`
	Meta  oboMeta   `json:"meta"`
	Nodes []oboNode `json:"nodes"`
	Edges []oboEdge `json:"edges"`
}

type oboEdge struct {
	Sub  string `json:"sub"`
	Pred string `json:"pred"`
	Obj  string `json:"obj"`
}

type oboNode struct {
	ID   string  `json:"id"`
	Lbl  string  `json:"lbl"`
	Type string  `json:"type"`
	Meta oboMeta `json:"meta"`
}

type oboMeta struct {
	Version    string       `json:"version"`
	Deprecated bool         `json:"deprecated"`
	Synonyms   []oboSynonym `json:"synonyms"`
}

type oboSynonym struct {
	Pred string `json:"pred"`
	Val  string `json:"val"`
}

func LoadGraph(path, prefix string) (*Graph, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadGraph(f, prefix)
}

// ReadGraph indexes the CLASS nodes whose CURIE prefix equals prefix; an
// empty prefix keeps every class. The release version is taken from the
// graph's versionInfo IRI, e.g. .../releases/2025-09-01/hp.json.
func ReadGraph(r io.Reader, prefix string) (*Graph, error) {
	var doc oboDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding obo graph: %w", err)
	}
	if len(doc.Graphs) == 0 {
		return nil, fmt.Errorf("obo graph document has no graphs")
	}

	g := doc.Graphs[0]
	var terms []Term
	for _, node := range g.Nodes {
		if node.Type != "" && node.Type != "CLASS" {
			continue
		}
		id := CURIE(node.ID)
		if prefix != "" && !strings.EqualFold(Prefix(id), prefix) {
			continue
		}
		t := Term{ID: id, Label: node.Lbl, Obsolete: node.Meta.Deprecated}
		for _, syn := range node.Meta.Synonyms {
			t.Synonyms = append(t.Synonyms, syn.Val)
		}
		terms = append(terms, t)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("obo graph has no %s classes", prefix)
	}
	graph := &Graph{index: newIndex(releaseVersion(g.Meta.Version), terms), parents: make(map[string][]string)}
	for _, e := range g.Edges {
		if e.Pred != "is_a" && !strings.HasSuffix(e.Pred, "subClassOf") {
			continue
		}
		sub, obj := strings.ToUpper(CURIE(e.Sub)), strings.ToUpper(CURIE(e.Obj))
		graph.parents[sub] = append(graph.parents[sub], obj)
	}
	return graph, nil
}

// IsAncestor reports whether ancestor is a strict is_a ancestor of term.
func (g *Graph) IsAncestor(ancestor, term string) bool {
	target := strings.ToUpper(strings.TrimSpace(ancestor))
	start := strings.ToUpper(strings.TrimSpace(term))
	if target == start {
		return false
	}
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, parent := range g.parents[id] {
			if parent == target {
				return true
			}
			if !seen[parent] {
				seen[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return false
}

func releaseVersion(v string) string {
	parts := strings.Split(v, "/")
	for i, p := range parts {
		if p == "releases" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return v
}
