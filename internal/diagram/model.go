package diagram

// NodeKind classifies a diagram node by the step template it stands for.
type NodeKind string

const (
	NodeKindAgent   NodeKind = "agent"   // an agent speaks
	NodeKindTeam    NodeKind = "team"    // structural team message
	NodeKindGuarded NodeKind = "guarded" // only runs when its guard holds
	NodeKindGate    NodeKind = "gate"    // the decision gate
	NodeKindOption  NodeKind = "option"  // one option offered at the gate
	NodeKindStart   NodeKind = "start"
	NodeKindEnd     NodeKind = "end"
)

// Status values carried by a StatusOverlay.
const (
	StatusCompleted = "completed"
	StatusRunning   = "running"
	StatusSuspended = "suspended"
	StatusPending   = "pending"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title    string
	Nodes    []*Node
	Edges    []Edge
	Clusters []*Cluster
	Levels   [][]string
}

// Node represents a single step template in the diagram.
type Node struct {
	ID      string
	Label   string
	Kind    NodeKind
	Cluster string
	Status  *StatusOverlay
}

// Cluster groups the nodes of one script phase.
type Cluster struct {
	ID    string
	Label string
	Nodes []string
}

// StatusOverlay carries runtime state for a node.
type StatusOverlay struct {
	Status string
	StepID string
}

// Edge represents the flow from one node to the next.
type Edge struct {
	From  string
	To    string
	Label string
}

// Node returns the node with the given ID, or nil.
func (m *DiagramModel) Node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
