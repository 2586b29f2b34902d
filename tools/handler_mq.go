package tools

import (
	"context"
	"fmt"
	"time"

	fecredis "github.com/lyzr/orchestrator/common/redis"
)

// MQHandler implements the `mq` tool type over Redis streams.
//
// No AMQP client appears anywhere in the retrieved example pack, so this
// substitutes the corpus's own stream-based broker primitive
// (common/redis's XAdd/XReadGroup wrapper, originally a token bus) for
// AMQP publisher/consumer-group semantics: a stream named
// `<service>.<path>` stands in for an exchange+routing-key pair, and Redis
// consumer groups stand in for queue bindings. `consume` declares its
// consumer group first: a group that already exists is accepted, any other
// declaration failure aborts the consume. `publish` declares nothing.
// Recorded in DESIGN.md.
type MQHandler struct{}

func (MQHandler) Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error) {
	client, ok := handle.Broker.(*fecredis.Client)
	if !ok || client == nil {
		return nil, fmt.Errorf("tools: mq handle for service %q has no broker client wired", handle.Service)
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	stream := fmt.Sprintf("%s.%s", handle.Service, spec.Code)
	op, _ := args["op"].(string)

	switch op {
	case "", "publish":
		routingKey, _ := args["routing_key"].(string)
		payload, _ := args["payload"].(map[string]interface{})
		values := make(map[string]interface{}, len(payload)+1)
		for k, v := range payload {
			values[k] = fmt.Sprintf("%v", v)
		}
		if routingKey != "" {
			values["routing_key"] = routingKey
		}
		id, err := client.AddToStream(ctx, stream, values)
		if err != nil {
			return nil, fmt.Errorf("tools: mq publish to %s: %w", stream, err)
		}
		return map[string]interface{}{"ack": true, "message_id": id}, nil

	case "consume":
		group, _ := args["group"].(string)
		consumer, _ := args["consumer"].(string)
		if group == "" {
			group = "fec"
		}
		if consumer == "" {
			consumer = "fec-worker"
		}
		if err := client.CreateStreamGroup(ctx, stream, group); err != nil {
			return nil, fmt.Errorf("tools: mq declare group on %s: %w", stream, err)
		}
		msgs, err := client.ReadFromStreamGroup(ctx, group, consumer, stream, 10, 0)
		if err != nil {
			return nil, fmt.Errorf("tools: mq consume from %s: %w", stream, err)
		}
		return msgs, nil

	default:
		return nil, fmt.Errorf("tools: mq unknown op %q", op)
	}
}
