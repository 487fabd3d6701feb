// Package learnpath defines the learning-path node returned by the model and
// the structural checks run over it before it reaches a caller.
package learnpath

import (
	"encoding/json"
	"fmt"
)

// Node is one step of a generated learning path.
type Node struct {
	NodeID          string   `json:"node_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	DifficultyLevel int      `json:"difficulty_level"`
	Prerequisites   []string `json:"prerequisites"`
}

// Parse validates data against the node array schema and decodes it.
// Nothing is returned unless the whole document is valid.
func Parse(data []byte) ([]Node, error) {
	if err := ValidateJSON(data); err != nil {
		return nil, err
	}
	var nodes []Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	for i := range nodes {
		if nodes[i].Prerequisites == nil {
			nodes[i].Prerequisites = []string{}
		}
	}
	return nodes, nil
}
