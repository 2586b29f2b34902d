package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	gotRecipient, gotSubject, gotBody string
	id                                string
	err                               error
}

func (f *fakeSender) Send(ctx context.Context, recipient, subject, body string) (string, error) {
	f.gotRecipient, f.gotSubject, f.gotBody = recipient, subject, body
	return f.id, f.err
}

func TestNotifyHandlerRendersTemplatesAndSends(t *testing.T) {
	sender := &fakeSender{id: "msg-1"}
	handle := &ServiceHandle{Service: "welcome-mail", Sender: sender}

	args := map[string]interface{}{
		"recipient": "user@example.com",
		"subject":   "Hello {{.name}}",
		"template":  "Welcome, {{.name}}!",
		"data":      map[string]interface{}{"name": "Ada"},
	}

	out, err := NotifyHandler{}.Invoke(context.Background(), handle, ToolSpec{}, args, time.Now().Add(time.Second))
	require.NoError(t, err)

	result := out.(map[string]interface{})
	assert.Equal(t, "msg-1", result["message_id"])
	assert.Equal(t, "user@example.com", sender.gotRecipient)
	assert.Equal(t, "Hello Ada", sender.gotSubject)
	assert.Equal(t, "Welcome, Ada!", sender.gotBody)
}

func TestNotifyHandlerMissingSenderErrors(t *testing.T) {
	handle := &ServiceHandle{Service: "no-sender"}
	_, err := NotifyHandler{}.Invoke(context.Background(), handle, ToolSpec{}, map[string]interface{}{
		"recipient": "user@example.com",
	}, time.Now().Add(time.Second))
	assert.Error(t, err)
}

func TestNotifyHandlerMissingRecipientErrors(t *testing.T) {
	handle := &ServiceHandle{Service: "svc", Sender: &fakeSender{}}
	_, err := NotifyHandler{}.Invoke(context.Background(), handle, ToolSpec{}, map[string]interface{}{}, time.Now().Add(time.Second))
	assert.Error(t, err)
}

func TestNotifyHandlerPropagatesSendError(t *testing.T) {
	sender := &fakeSender{err: assert.AnError}
	handle := &ServiceHandle{Service: "svc", Sender: sender}
	_, err := NotifyHandler{}.Invoke(context.Background(), handle, ToolSpec{}, map[string]interface{}{
		"recipient": "user@example.com",
	}, time.Now().Add(time.Second))
	assert.Error(t, err)
}
