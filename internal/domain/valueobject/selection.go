package valueobject

// SelectionKind тип выделения на экране
type SelectionKind string

const (
	SelectionNone  SelectionKind = "none"
	SelectionNode  SelectionKind = "node"
	SelectionAgent SelectionKind = "agent"
)

// Selection текущий выбор пользователя (Value Object)
type Selection struct {
	Kind     SelectionKind `json:"kind"`
	ID       string        `json:"id,omitempty"`
	NodeKind NodeKind      `json:"node_kind,omitempty"`
}

// NoSelection пустое выделение
func NoSelection() Selection {
	return Selection{Kind: SelectionNone}
}

// NodeSelection выбор узла графа с известным типом
func NodeSelection(id string, kind NodeKind) Selection {
	if kind == "" {
		kind = NodeUnknown
	}
	return Selection{Kind: SelectionNode, ID: id, NodeKind: kind}
}

// AgentSelection выбор агента в рейтинге
func AgentSelection(id string) Selection {
	return Selection{Kind: SelectionAgent, ID: id}
}

// IsEmpty true, если ничего не выбрано
func (s Selection) IsEmpty() bool {
	return s.Kind == "" || s.Kind == SelectionNone || s.ID == ""
}
