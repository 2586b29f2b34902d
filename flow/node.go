package flow

// NodeKind tags which variant of the Node sum type is
// populated. Executors are looked up by Kind via a dispatch table
// rather than by subtype
// polymorphism.
type NodeKind string

const (
	KindExec     NodeKind = "exec"
	KindMapping  NodeKind = "mapping"
	KindCondition NodeKind = "condition"
	KindSwitch   NodeKind = "switch"
	KindDelay    NodeKind = "delay"
	KindEach     NodeKind = "each"
	KindLoop     NodeKind = "loop"
	KindAgent    NodeKind = "agent"
	KindMcp      NodeKind = "mcp"
	KindGuard    NodeKind = "guard"
	KindApproval NodeKind = "approval"
	KindHandoff  NodeKind = "handoff"
)

// Node is the tagged-variant node type shared by every kind:
// `id, name?, description?, only?, next?, fail?` plus exactly one populated
// variant-specific spec selected by Kind.
type Node struct {
	ID          string
	Name        string
	Description string
	Only        string // raw GML-bool expression, empty if absent
	Next        []string
	Fail        string // NodeId, empty if absent
	Kind        NodeKind

	Exec     *ExecSpec
	Mapping  *MappingSpec
	Condition *ConditionSpec
	Switch   *SwitchSpec
	Delay    *DelaySpec
	Each     *EachSpec
	Loop     *LoopSpec
	Agent    *AgentSpec
	Mcp      *McpSpec
	Guard    *GuardSpec
	Approval *ApprovalSpec
	Handoff  *HandoffSpec
}

type ExecSpec struct {
	URI  string // <type>://<service>/<path>?<opts>
	Args string // raw GML
	With string // raw GML
	Sets string // raw GML
}

type MappingSpec struct {
	With string // raw GML, required
	Sets string // raw GML
}

type ConditionSpec struct {
	When string // raw GML-bool
	Then string // NodeId
	Else string // NodeId, empty if absent
}

type SwitchCase struct {
	When string
	Then string
}

type SwitchSpec struct {
	Cases []SwitchCase
	Else  string
}

// DelaySpec holds the raw `wait` value: a string duration ("5s") or a
// numeric literal (milliseconds), parsed at execution time.
type DelaySpec struct {
	Wait string
}

// EachSpec: `each: "sourceExpr => itemAlias[, indexAlias]"` plus a subflow
// keyed by NodeId.
type EachSpec struct {
	SourceExpr string
	ItemAlias  string
	IndexAlias string // empty if not bound
	Vars       string // raw GML, optional
	With       string // raw GML, optional
	Subflow    *Subflow
	Mode       string // "parallel" (default) or "sequential"
}

type LoopSpec struct {
	Vars    string // raw GML, init
	When    string // raw GML-bool, continue condition
	With    string // raw GML, optional
	Subflow *Subflow
	MaxIterations int // 0 means use default (10000)
}

type AgentDef struct {
	Model        string
	Instructions string
	Tools        []string
	OutputFormat string // json|markdown|text
	Temperature  float64
}

type AgentSpec struct {
	Agent AgentDef
	Args  string
	With  string
}

type McpCall struct {
	Server string
	Tool   string
	Auth   string
}

type McpSpec struct {
	Mcp  McpCall
	Args string
	With string
}

type GuardDef struct {
	Types      []string // pii, jailbreak, moderation, hallucination, schema, custom
	Action     string   // block, warn, redact, custom
	Schema     string   // raw GML or JSON schema reference
	Expression string   // raw GML-bool, for type=custom
}

type GuardSpec struct {
	Guard GuardDef
	Args  string
	Then  string
	Else  string
}

type ApprovalOption struct {
	ID    string
	Label string
}

type ApprovalDef struct {
	Title         string
	Description   string
	Options       []ApprovalOption
	TimeoutMs     int64 // 0 means no timeout
	TimeoutAction string // option id taken on timeout, empty = fail
}

type ApprovalSpec struct {
	Approval ApprovalDef
	Then     string
	Else     string
}

type HandoffDef struct {
	Target   string
	Context  []string // context keys propagated to the target
	ResumeOn string   // completed|error|any
}

type HandoffSpec struct {
	Handoff HandoffDef
	Args    string
	With    string
}

// Subflow is a self-contained node set with its own NodeId namespace, used
// by each Each/Loop node's `subflow` field.
type Subflow struct {
	Nodes     []*Node
	NodesByID map[string]*Node
}

// NewSubflow indexes nodes by ID for graph-building and dispatch.
func NewSubflow(nodes []*Node) *Subflow {
	sf := &Subflow{Nodes: nodes, NodesByID: make(map[string]*Node, len(nodes))}
	for _, n := range nodes {
		sf.NodesByID[n.ID] = n
	}
	return sf
}
