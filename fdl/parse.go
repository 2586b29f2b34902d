package fdl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lyzr/orchestrator/flow"
	"gopkg.in/yaml.v3"
)

// Parse compiles FDL source into a flow.Flow.
func Parse(src []byte) (*flow.Flow, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("fdl: %w", err)
	}
	if doc.Flow.Name == "" {
		return nil, fmt.Errorf("fdl: flow.name is required")
	}

	argsIn, err := decodeParamList(&doc.Flow.Args.In)
	if err != nil {
		return nil, fmt.Errorf("fdl: args.in: %w", err)
	}
	argsOut, err := decodeArgsOut(&doc.Flow.Args.Out)
	if err != nil {
		return nil, fmt.Errorf("fdl: args.out: %w", err)
	}
	argsDefs, err := decodeArgsDefs(&doc.Flow.Args.Defs)
	if err != nil {
		return nil, fmt.Errorf("fdl: args.defs: %w", err)
	}
	nodes, err := decodeNodeMap(&doc.Flow.Node)
	if err != nil {
		return nil, fmt.Errorf("fdl: node: %w", err)
	}

	mcpServers := make([]flow.McpServerRef, 0, len(doc.Flow.McpServers))
	for _, s := range doc.Flow.McpServers {
		mcpServers = append(mcpServers, flow.McpServerRef{ID: s.ID, URL: s.URL, Name: s.Name})
	}

	f := flow.New(flow.Meta{Name: doc.Flow.Name, Description: doc.Flow.Desp}, nodes)
	f.McpServers = mcpServers
	f.ArgsIn = argsIn
	f.ArgsOut = argsOut
	f.ArgsDefs = argsDefs
	f.Vars = doc.Flow.Vars

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func decodeParamList(node *yaml.Node) ([]flow.ParamSpec, error) {
	resolved := resolveAlias(node)
	if resolved == nil || resolved.Kind == 0 {
		return nil, nil
	}
	if resolved.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of paramName -> type spec")
	}
	params := make([]flow.ParamSpec, 0, len(resolved.Content)/2)
	for i := 0; i+1 < len(resolved.Content); i += 2 {
		key := resolved.Content[i].Value
		val := resolved.Content[i+1].Value
		spec, def, desc, err := parseParamValue(val)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", key, err)
		}
		params = append(params, flow.ParamSpec{Name: key, Type: spec, Default: def, Description: desc})
	}
	return params, nil
}

func decodeArgsOut(node *yaml.Node) (flow.OutputSpec, error) {
	resolved := resolveAlias(node)
	if resolved == nil || resolved.Kind == 0 {
		return flow.OutputSpec{}, nil
	}
	if resolved.Kind == yaml.ScalarNode {
		spec, err := parseTypeSpec(resolved.Value)
		if err != nil {
			return flow.OutputSpec{}, err
		}
		return flow.OutputSpec{SingleType: &spec}, nil
	}
	params, err := decodeParamList(node)
	if err != nil {
		return flow.OutputSpec{}, err
	}
	return flow.OutputSpec{Params: params}, nil
}

func decodeArgsDefs(node *yaml.Node) (map[string]flow.TypeDef, error) {
	resolved := resolveAlias(node)
	if resolved == nil || resolved.Kind == 0 {
		return nil, nil
	}
	if resolved.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of TypeName -> fields")
	}
	defs := make(map[string]flow.TypeDef, len(resolved.Content)/2)
	for i := 0; i+1 < len(resolved.Content); i += 2 {
		name := resolved.Content[i].Value
		fieldsNode := resolved.Content[i+1]
		fields, err := decodeParamList(fieldsNode)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", name, err)
		}
		defs[name] = flow.TypeDef{Name: name, Fields: fields}
	}
	return defs, nil
}

// decodeNodeMap decodes a `node:` mapping into flow.Node values in
// declaration order.
func decodeNodeMap(node *yaml.Node) ([]*flow.Node, error) {
	resolved := resolveAlias(node)
	if resolved == nil || resolved.Kind == 0 {
		return nil, nil
	}
	if resolved.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of nodeId -> node body")
	}
	nodes := make([]*flow.Node, 0, len(resolved.Content)/2)
	for i := 0; i+1 < len(resolved.Content); i += 2 {
		id := resolved.Content[i].Value
		body := resolved.Content[i+1]
		var rn rawNode
		if err := body.Decode(&rn); err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		n, err := convertNode(id, &rn)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	if n != nil && n.Kind == yaml.AliasNode {
		return n.Alias
	}
	return n
}

// inferKind applies the discriminator priority order: agent, guard,
// approval, mcp, handoff, exec, wait, each, (vars ∧ when ∧ node) ⇒ loop,
// (case[]) ⇒ switch, (when ∧ then) ⇒ condition, with ⇒ mapping, else
// mapping.
func inferKind(rn *rawNode) flow.NodeKind {
	switch {
	case rn.Agent != nil:
		return flow.KindAgent
	case rn.Guard != nil:
		return flow.KindGuard
	case rn.Approval != nil:
		return flow.KindApproval
	case rn.Mcp != nil:
		return flow.KindMcp
	case rn.Handoff != nil:
		return flow.KindHandoff
	case rn.Exec != "":
		return flow.KindExec
	case rn.Wait.Value != "":
		return flow.KindDelay
	case rn.Each != "":
		return flow.KindEach
	case rn.Vars != "" && rn.When != "" && rn.Node.Kind != 0:
		return flow.KindLoop
	case len(rn.Case) > 0:
		return flow.KindSwitch
	case rn.When != "" && rn.Then != "":
		return flow.KindCondition
	case rn.With != "":
		return flow.KindMapping
	default:
		return flow.KindMapping
	}
}

func convertNode(id string, rn *rawNode) (*flow.Node, error) {
	n := &flow.Node{
		ID:          id,
		Name:        rn.Name,
		Description: rn.Desp,
		Only:        rn.Only,
		Next:        parseNext(rn.Next),
		Fail:        rn.Fail,
		Kind:        inferKind(rn),
	}

	switch n.Kind {
	case flow.KindExec:
		n.Exec = &flow.ExecSpec{URI: rn.Exec, Args: rn.Args, With: rn.With, Sets: rn.Sets}

	case flow.KindMapping:
		n.Mapping = &flow.MappingSpec{With: rn.With, Sets: rn.Sets}

	case flow.KindCondition:
		n.Condition = &flow.ConditionSpec{When: rn.When, Then: rn.Then, Else: rn.Else}

	case flow.KindSwitch:
		cases := make([]flow.SwitchCase, 0, len(rn.Case))
		for _, c := range rn.Case {
			cases = append(cases, flow.SwitchCase{When: c.When, Then: c.Then})
		}
		n.Switch = &flow.SwitchSpec{Cases: cases, Else: rn.Else}

	case flow.KindDelay:
		n.Delay = &flow.DelaySpec{Wait: rn.Wait.Value}

	case flow.KindEach:
		source, itemAlias, indexAlias, err := parseEachExpr(rn.Each)
		if err != nil {
			return nil, err
		}
		sub, err := decodeSubflow(&rn.Node)
		if err != nil {
			return nil, fmt.Errorf("each subflow: %w", err)
		}
		mode := rn.Mode
		if mode == "" {
			mode = "parallel"
		}
		n.Each = &flow.EachSpec{
			SourceExpr: source, ItemAlias: itemAlias, IndexAlias: indexAlias,
			Vars: rn.Vars, With: rn.With, Subflow: sub, Mode: mode,
		}

	case flow.KindLoop:
		sub, err := decodeSubflow(&rn.Node)
		if err != nil {
			return nil, fmt.Errorf("loop subflow: %w", err)
		}
		n.Loop = &flow.LoopSpec{Vars: rn.Vars, When: rn.When, With: rn.With, Subflow: sub, MaxIterations: rn.MaxIterations}

	case flow.KindAgent:
		n.Agent = &flow.AgentSpec{
			Agent: flow.AgentDef{
				Model: rn.Agent.Model, Instructions: rn.Agent.Instructions,
				Tools: rn.Agent.Tools, OutputFormat: rn.Agent.OutputFormat, Temperature: rn.Agent.Temperature,
			},
			Args: rn.Args, With: rn.With,
		}

	case flow.KindMcp:
		n.Mcp = &flow.McpSpec{
			Mcp:  flow.McpCall{Server: rn.Mcp.Server, Tool: rn.Mcp.Tool, Auth: rn.Mcp.Auth},
			Args: rn.Args, With: rn.With,
		}

	case flow.KindGuard:
		n.Guard = &flow.GuardSpec{
			Guard: flow.GuardDef{Types: rn.Guard.Types, Action: rn.Guard.Action, Schema: rn.Guard.Schema, Expression: rn.Guard.Expression},
			Args:  rn.Args, Then: rn.Then, Else: rn.Else,
		}

	case flow.KindApproval:
		opts := make([]flow.ApprovalOption, 0, len(rn.Approval.Options))
		for _, o := range rn.Approval.Options {
			opts = append(opts, flow.ApprovalOption{ID: o.ID, Label: o.Label})
		}
		n.Approval = &flow.ApprovalSpec{
			Approval: flow.ApprovalDef{
				Title: rn.Approval.Title, Description: rn.Approval.Description, Options: opts,
				TimeoutMs: parseTimeoutMs(rn.Approval.Timeout), TimeoutAction: rn.Approval.TimeoutAction,
			},
			Then: rn.Then, Else: rn.Else,
		}

	case flow.KindHandoff:
		n.Handoff = &flow.HandoffSpec{
			Handoff: flow.HandoffDef{Target: rn.Handoff.Target, Context: rn.Handoff.Context, ResumeOn: rn.Handoff.ResumeOn},
			Args:    rn.Args, With: rn.With,
		}
	}

	return n, nil
}

func decodeSubflow(node *yaml.Node) (*flow.Subflow, error) {
	nodes, err := decodeNodeMap(node)
	if err != nil {
		return nil, err
	}
	return flow.NewSubflow(nodes), nil
}

// parseEachExpr parses `sourceExpr => itemAlias[, indexAlias]`.
func parseEachExpr(s string) (source, itemAlias, indexAlias string, err error) {
	idx := strings.Index(s, "=>")
	if idx < 0 {
		return "", "", "", fmt.Errorf("each expression %q missing '=>'", s)
	}
	source = strings.TrimSpace(s[:idx])
	aliasPart := strings.TrimSpace(s[idx+2:])
	parts := strings.SplitN(aliasPart, ",", 2)
	itemAlias = strings.TrimSpace(parts[0])
	if itemAlias == "" {
		return "", "", "", fmt.Errorf("each expression %q missing item alias", s)
	}
	if len(parts) == 2 {
		indexAlias = strings.TrimSpace(parts[1])
	}
	return source, itemAlias, indexAlias, nil
}

// parseTimeoutMs accepts either a bare millisecond integer or a duration
// string like "5s"/"2m" for an approval's `timeout` field.
func parseTimeoutMs(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	d, err := parseDuration(s)
	if err != nil {
		return 0
	}
	return d.Milliseconds()
}
