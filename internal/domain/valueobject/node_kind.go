package valueobject

// NodeKind тип узла графа причин
type NodeKind string

const (
	NodeSupplier NodeKind = "supplier"
	NodeModel    NodeKind = "model"
	NodeFailure  NodeKind = "failure"
	NodeUnknown  NodeKind = "unknown"
)

// ParseNodeKind сравнивает строго (с учетом регистра); прочие значения дают NodeUnknown
func ParseNodeKind(raw string) NodeKind {
	switch NodeKind(raw) {
	case NodeSupplier, NodeModel, NodeFailure:
		return NodeKind(raw)
	default:
		return NodeUnknown
	}
}

func (k NodeKind) String() string {
	return string(k)
}
