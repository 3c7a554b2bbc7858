// Package integration runs the whole monitor against a scripted pw-dump.
package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// DumpObject is one object in a pw-dump batch
type DumpObject map[string]any

// Node returns a node object with the given info state and props
func Node(id int, nodeState string, props map[string]string) DumpObject {
	return DumpObject{
		"id":      id,
		"type":    "PipeWire:Interface:Node",
		"version": 3,
		"info": map[string]any{
			"state": nodeState,
			"error": nil,
			"props": props,
		},
	}
}

// Removed returns the object pw-dump prints when id goes away
func Removed(id int) DumpObject {
	return DumpObject{"id": id, "info": nil}
}

// FrontCamera returns the props of the front camera node
func FrontCamera() map[string]string {
	return map[string]string{
		"media.role":             "Camera",
		"api.libcamera.location": "front",
		"device.product.name":    "ov5675",
		"node.name":              "libcamera_input.front",
	}
}

// RearCamera returns the props of the rear camera node
func RearCamera() map[string]string {
	return map[string]string{
		"media.role":             "Camera",
		"api.libcamera.location": "rear",
		"device.product.name":    "ov5675",
		"node.name":              "libcamera_input.rear",
	}
}

// MockPwDump writes a pw-dump stand-in that prints its batches and then
// either stays alive until killed or exits with ExitCode
type MockPwDump struct {
	Batches  [][]DumpObject
	Stderr   string
	Exit     bool
	ExitCode int
}

// Write creates the script in a temp dir and returns its path
func (m *MockPwDump) Write(t *testing.T) string {
	t.Helper()

	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	for _, batch := range m.Batches {
		data, err := json.Marshal(batch)
		if err != nil {
			t.Fatalf("failed to encode batch: %v", err)
		}
		fmt.Fprintf(&b, "cat <<'EOF'\n%s\nEOF\n", data)
	}
	if m.Stderr != "" {
		fmt.Fprintf(&b, "echo '%s' >&2\n", m.Stderr)
	}
	if m.Exit {
		fmt.Fprintf(&b, "exit %d\n", m.ExitCode)
	} else {
		b.WriteString("exec sleep 30\n")
	}

	path := filepath.Join(t.TempDir(), "pw-dump")
	if err := os.WriteFile(path, []byte(b.String()), 0755); err != nil {
		t.Fatalf("failed to write pw-dump script: %v", err)
	}
	return path
}
