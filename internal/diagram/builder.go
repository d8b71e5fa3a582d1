package diagram

import (
	"errors"
	"fmt"

	"github.com/rendis/conclave/pkg/schema"
)

const (
	startID = "__start__"
	endID   = "__end__"
)

// Build constructs a DiagramModel from a script. When state is non-nil the
// nodes carry a status overlay derived from the run's step log.
func Build(s *schema.Script, state *schema.RunState) (*DiagramModel, error) {
	if s == nil {
		return nil, errors.New("diagram: nil script")
	}

	m := &DiagramModel{Title: titleFromScript(s)}
	m.addNode(&Node{ID: startID, Label: "Start", Kind: NodeKindStart})

	prev := []string{startID}
	for pi := range s.Phases {
		phase := &s.Phases[pi]
		cluster := &Cluster{ID: phase.ID, Label: phase.Label}
		m.Clusters = append(m.Clusters, cluster)

		for si := range phase.Steps {
			tmpl := &phase.Steps[si]
			node := templateNode(phase.ID, si, tmpl)
			node.Cluster = phase.ID
			m.addNode(node)
			cluster.Nodes = append(cluster.Nodes, node.ID)
			m.connect(prev, node.ID)
			prev = []string{node.ID}

			if tmpl.Disagreement == nil {
				continue
			}
			var opts []string
			for oi, o := range tmpl.Disagreement.Options {
				opt := &Node{
					ID:      fmt.Sprintf("%s_opt%d", node.ID, oi),
					Label:   fmt.Sprintf("%d. %s\n(%s)", oi+1, o.Position, o.Agent),
					Kind:    NodeKindOption,
					Cluster: phase.ID,
				}
				m.Nodes = append(m.Nodes, opt)
				cluster.Nodes = append(cluster.Nodes, opt.ID)
				m.Edges = append(m.Edges, Edge{From: node.ID, To: opt.ID, Label: fmt.Sprintf("choose %d", oi+1)})
				opts = append(opts, opt.ID)
			}
			m.Levels = append(m.Levels, opts)
			prev = opts
		}
	}

	m.addNode(&Node{ID: endID, Label: "End", Kind: NodeKindEnd})
	m.connect(prev, endID)

	if state != nil {
		overlay(m, s, state)
	}
	return m, nil
}

func (m *DiagramModel) addNode(n *Node) {
	m.Nodes = append(m.Nodes, n)
	m.Levels = append(m.Levels, []string{n.ID})
}

func (m *DiagramModel) connect(from []string, to string) {
	for _, f := range from {
		m.Edges = append(m.Edges, Edge{From: f, To: to})
	}
}

// templateNode maps a step template to a diagram node.
func templateNode(phaseID string, index int, tmpl *schema.StepTemplate) *Node {
	return &Node{
		ID:    fmt.Sprintf("%s_%d", phaseID, index),
		Label: nodeLabel(tmpl),
		Kind:  templateKind(tmpl),
	}
}

func templateKind(tmpl *schema.StepTemplate) NodeKind {
	switch {
	case tmpl.Disagreement != nil:
		return NodeKindGate
	case tmpl.When != "":
		return NodeKindGuarded
	case tmpl.Agent != "":
		return NodeKindAgent
	default:
		return NodeKindTeam
	}
}

// nodeLabel creates a human-readable label for a node.
func nodeLabel(tmpl *schema.StepTemplate) string {
	switch {
	case tmpl.Disagreement != nil:
		return fmt.Sprintf("Decision: %s\n(%s)", tmpl.Disagreement.Topic, tmpl.Phase)
	case tmpl.Agent != "" && tmpl.Action != "":
		return fmt.Sprintf("%s %s\n(%s, %s)", tmpl.Agent, tmpl.Action, tmpl.Role, tmpl.Phase)
	case tmpl.Agent != "":
		return fmt.Sprintf("%s\n(%s, %s)", tmpl.Agent, tmpl.Role, tmpl.Phase)
	case tmpl.Type != "":
		return fmt.Sprintf("%s\n(%s)", tmpl.Type, tmpl.Phase)
	default:
		return string(tmpl.Phase)
	}
}

// titleFromScript generates a diagram title from script metadata.
func titleFromScript(s *schema.Script) string {
	if s.Metadata != nil {
		if title, ok := s.Metadata["title"].(string); ok && title != "" {
			return title
		}
	}
	if s.Name != "" {
		return s.Name
	}
	return "Script"
}
