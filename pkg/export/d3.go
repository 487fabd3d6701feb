package export

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/duynguyendang/cyclopath/pkg/learnpath"
)

// D3Node represents a node in the D3 force-directed graph.
type D3Node struct {
	ID         string            `json:"id"`                 // node_id of the path node
	Name       string            `json:"name"`               // Display name (title)
	Group      string            `json:"group,omitempty"`    // Difficulty band used for colouring
	Difficulty int               `json:"difficulty"`         // 1-10
	Order      int               `json:"order"`              // Position in the path, starting at 1
	Metadata   map[string]string `json:"metadata,omitempty"` // Extra data (e.g. description)
}

// D3Link represents a link/edge in the D3 force-directed graph.
type D3Link struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// D3Graph represents the full graph structure for D3.js.
type D3Graph struct {
	Nodes []D3Node `json:"nodes"`
	Links []D3Link `json:"links"`
}

// RelationPrerequisite labels an edge from a prerequisite to its dependant.
const RelationPrerequisite = "prerequisite"

// DifficultyBand groups difficulty levels for visualization.
func DifficultyBand(level int) string {
	switch {
	case level <= 0:
		return "unrated"
	case level <= 3:
		return "beginner"
	case level <= 6:
		return "intermediate"
	case level <= 8:
		return "advanced"
	default:
		return "expert"
	}
}

// FromLearningPath converts a learning path to a D3 graph. Prerequisites that
// name no node in the path are skipped.
func FromLearningPath(nodes []learnpath.Node) *D3Graph {
	graph := &D3Graph{
		Nodes: make([]D3Node, 0, len(nodes)),
		Links: []D3Link{},
	}

	known := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		if known[n.NodeID] {
			continue
		}
		known[n.NodeID] = true
		graph.Nodes = append(graph.Nodes, D3Node{
			ID:         n.NodeID,
			Name:       n.Title,
			Group:      DifficultyBand(n.DifficultyLevel),
			Difficulty: n.DifficultyLevel,
			Order:      i + 1,
			Metadata: map[string]string{
				"description":   n.Description,
				"prerequisites": strconv.Itoa(len(n.Prerequisites)),
			},
		})
	}

	seen := make(map[[2]string]bool)
	for _, n := range nodes {
		for _, pre := range n.Prerequisites {
			if !known[pre] || pre == n.NodeID {
				continue
			}
			key := [2]string{pre, n.NodeID}
			if seen[key] {
				continue
			}
			seen[key] = true
			graph.Links = append(graph.Links, D3Link{
				Source:   pre,
				Target:   n.NodeID,
				Relation: RelationPrerequisite,
			})
		}
	}

	return graph
}

// SaveD3Graph writes the graph to a JSON file.
func SaveD3Graph(graph *D3Graph, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(graph)
}
