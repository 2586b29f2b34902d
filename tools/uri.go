// Package tools resolves `<type>://<service>/<path>?<opts>` exec URIs to
// cached, circuit-broken ServiceHandles and invokes per-type handlers.
package tools

import (
	"fmt"
	"net/url"
	"strings"
)

// ToolType enumerates the handler kinds a ServiceHandle can back.
type ToolType string

const (
	TypeAPI   ToolType = "api"
	TypeDB    ToolType = "db"
	TypeSvc   ToolType = "svc"
	TypeMCP   ToolType = "mcp"
	TypeOSS   ToolType = "oss"
	TypeMQ    ToolType = "mq"
	TypeMail  ToolType = "mail"
	TypeSMS   ToolType = "sms"
	TypeFlow  ToolType = "flow"
	TypeAgent ToolType = "agent"
)

var validTypes = map[ToolType]bool{
	TypeAPI: true, TypeDB: true, TypeSvc: true, TypeMCP: true, TypeOSS: true,
	TypeMQ: true, TypeMail: true, TypeSMS: true, TypeFlow: true, TypeAgent: true,
}

// ToolURI is a parsed `<type>://<service>/<path>?<opts>` exec URI.
type ToolURI struct {
	Type    ToolType
	Service string
	Path    string
	Opts    url.Values
}

// ParseURI parses an exec URI of the form `<type>://<service>/<path>?<opts>`.
func ParseURI(raw string) (*ToolURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("tools: invalid exec URI %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("tools: exec URI %q missing type scheme", raw)
	}
	t := ToolType(u.Scheme)
	if !validTypes[t] {
		return nil, fmt.Errorf("tools: unknown tool type %q in URI %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("tools: exec URI %q missing service host", raw)
	}
	return &ToolURI{
		Type:    t,
		Service: u.Host,
		Path:    strings.TrimPrefix(u.Path, "/"),
		Opts:    u.Query(),
	}, nil
}

func (u *ToolURI) String() string {
	return fmt.Sprintf("%s://%s/%s", u.Type, u.Service, u.Path)
}
