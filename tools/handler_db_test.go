package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDBHandlerMissingPoolErrors(t *testing.T) {
	handle := &ServiceHandle{Service: "orders-db"}
	_, err := DBHandler{}.Invoke(context.Background(), handle, ToolSpec{Code: "orders"}, map[string]interface{}{
		"op": "list",
	}, time.Now().Add(time.Second))
	assert.ErrorContains(t, err, "no pgxpool.Pool wired")
}

func TestDBHandlerWrongPoolTypeErrors(t *testing.T) {
	handle := &ServiceHandle{Service: "orders-db", DBQuerier: "not-a-pool"}
	_, err := DBHandler{}.Invoke(context.Background(), handle, ToolSpec{Code: "orders"}, map[string]interface{}{
		"op": "take",
	}, time.Now().Add(time.Second))
	assert.Error(t, err)
}
