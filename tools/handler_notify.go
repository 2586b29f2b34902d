package tools

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"
)

// Sender is implemented by a concrete mail/SMS provider adapter and
// registered on a ServiceHandle's Sender field.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) (string, error)
}

// NotifyHandler implements the `mail`/`sms` tool types:
// template-driven sending. No templating library appears anywhere in the
// retrieved example pack, so this uses text/template directly — a single
// substitution pass over a short string needs nothing an ecosystem
// library would add; recorded in DESIGN.md.
type NotifyHandler struct{}

func (NotifyHandler) Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error) {
	sender, ok := handle.Sender.(Sender)
	if !ok || sender == nil {
		return nil, fmt.Errorf("tools: notify handle for service %q has no sender wired", handle.Service)
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	recipient, _ := args["recipient"].(string)
	if recipient == "" {
		return nil, fmt.Errorf("tools: notify requires a recipient")
	}
	subjectTmpl, _ := args["subject"].(string)
	bodyTmpl, _ := args["template"].(string)
	data, _ := args["data"].(map[string]interface{})

	subject, err := renderTemplate(subjectTmpl, data)
	if err != nil {
		return nil, fmt.Errorf("tools: notify render subject: %w", err)
	}
	body, err := renderTemplate(bodyTmpl, data)
	if err != nil {
		return nil, fmt.Errorf("tools: notify render body: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, &TimeoutError{URI: handle.Service}
	default:
	}

	id, err := sender.Send(ctx, recipient, subject, body)
	if err != nil {
		return nil, fmt.Errorf("tools: notify send: %w", err)
	}
	return map[string]interface{}{"message_id": id, "recipient": recipient}, nil
}

func renderTemplate(tmpl string, data map[string]interface{}) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	t, err := template.New("notify").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
