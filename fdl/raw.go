package fdl

import "gopkg.in/yaml.v3"

// rawDocument mirrors the top-level FDL document.
type rawDocument struct {
	Flow rawFlow `yaml:"flow"`
}

type rawFlow struct {
	Name       string         `yaml:"name"`
	Desp       string         `yaml:"desp"`
	McpServers []rawMcpServer `yaml:"mcp_servers"`
	Args       rawArgs        `yaml:"args"`
	Vars       string         `yaml:"vars"`
	Node       yaml.Node      `yaml:"node"`
}

type rawMcpServer struct {
	ID   string `yaml:"id"`
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// rawArgs keeps `in`/`out`/`defs` as raw yaml.Node mappings so field order
// is preserved.
type rawArgs struct {
	In   yaml.Node `yaml:"in"`
	Out  yaml.Node `yaml:"out"`
	Defs yaml.Node `yaml:"defs"`
}

// rawNode mirrors every discriminator field any node variant can carry
//; only the fields relevant to the inferred Kind are
// read by convertNode.
type rawNode struct {
	Name  string `yaml:"name"`
	Desp  string `yaml:"desp"`
	Only  string `yaml:"only"`
	Next  string `yaml:"next"`
	Fail  string `yaml:"fail"`

	Exec string `yaml:"exec"`
	Args string `yaml:"args"`
	With string `yaml:"with"`
	Sets string `yaml:"sets"`

	When string    `yaml:"when"`
	Then string    `yaml:"then"`
	Else string    `yaml:"else"`
	Case []rawCase `yaml:"case"`

	Wait yaml.Node `yaml:"wait"`

	Each string    `yaml:"each"`
	Vars string    `yaml:"vars"`
	Mode string    `yaml:"mode"`
	Node yaml.Node `yaml:"node"`

	MaxIterations int `yaml:"max_iterations"`

	Agent    *rawAgent    `yaml:"agent"`
	Mcp      *rawMcp      `yaml:"mcp"`
	Guard    *rawGuard    `yaml:"guard"`
	Approval *rawApproval `yaml:"approval"`
	Handoff  *rawHandoff  `yaml:"handoff"`
}

type rawCase struct {
	When string `yaml:"when"`
	Then string `yaml:"then"`
}

type rawAgent struct {
	Model        string   `yaml:"model"`
	Instructions string   `yaml:"instructions"`
	Tools        []string `yaml:"tools"`
	OutputFormat string   `yaml:"output_format"`
	Temperature  float64  `yaml:"temperature"`
}

type rawMcp struct {
	Server string `yaml:"server"`
	Tool   string `yaml:"tool"`
	Auth   string `yaml:"auth"`
}

type rawGuard struct {
	Types      []string `yaml:"types"`
	Action     string   `yaml:"action"`
	Schema     string   `yaml:"schema"`
	Expression string   `yaml:"expression"`
}

type rawApproval struct {
	Title         string              `yaml:"title"`
	Description   string              `yaml:"description"`
	Options       []rawApprovalOption `yaml:"options"`
	Timeout       string              `yaml:"timeout"`
	TimeoutAction string              `yaml:"timeout_action"`
}

type rawApprovalOption struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type rawHandoff struct {
	Target   string   `yaml:"target"`
	Context  []string `yaml:"context"`
	ResumeOn string   `yaml:"resume_on"`
}
