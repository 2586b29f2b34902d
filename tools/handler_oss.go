package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// OSSHandler implements the `oss` tool type (upload/download/delete/
// list/presign) as a filesystem-backed reference handler.
//
// This is left unwired to a real cloud object store: binding the generic
// `oss` abstraction to one vendor (e.g. AWS S3) contradicts its role as a
// vendor-neutral external-collaborator abstraction, and no component
// commits to a specific cloud SDK for it. This is a deliberate stdlib
// choice, recorded in DESIGN.md.
type OSSHandler struct{}

func (OSSHandler) Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, &TimeoutError{URI: handle.Service}
	default:
	}

	op, _ := args["op"].(string)
	key, _ := args["key"].(string)
	root := handle.OSSRoot
	if root == "" {
		root = "."
	}

	switch op {
	case "upload":
		data, _ := args["data"].(string)
		full := filepath.Join(root, filepath.Clean("/"+key))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("tools: oss upload mkdir: %w", err)
		}
		if err := os.WriteFile(full, []byte(data), 0o644); err != nil {
			return nil, fmt.Errorf("tools: oss upload: %w", err)
		}
		return map[string]interface{}{"key": key, "size": len(data)}, nil

	case "download":
		full := filepath.Join(root, filepath.Clean("/"+key))
		f, err := os.Open(full)
		if err != nil {
			return nil, fmt.Errorf("tools: oss download: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("tools: oss download read: %w", err)
		}
		return string(data), nil

	case "delete":
		full := filepath.Join(root, filepath.Clean("/"+key))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("tools: oss delete: %w", err)
		}
		return map[string]interface{}{"key": key}, nil

	case "list":
		prefix, _ := args["prefix"].(string)
		dir := filepath.Join(root, filepath.Clean("/"+prefix))
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return []string{}, nil
			}
			return nil, fmt.Errorf("tools: oss list: %w", err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, filepath.Join(prefix, e.Name()))
			}
		}
		return names, nil

	case "presign":
		// The filesystem reference handler has no notion of signed URLs;
		// it returns a file:// URI as the closest local analogue.
		full := filepath.Join(root, filepath.Clean("/"+key))
		return "file://" + full, nil

	default:
		return nil, fmt.Errorf("tools: oss unknown op %q", op)
	}
}
