package pipewire

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// syncInvoker runs callbacks immediately on the calling goroutine
type syncInvoker struct{}

func (syncInvoker) Invoke(fn func()) bool {
	fn()
	return true
}

// chanInvoker hands callbacks to the test goroutine
type chanInvoker chan func()

func (c chanInvoker) Invoke(fn func()) bool {
	c <- fn
	return true
}

const sampleDump = `[
  {
    "id": 0,
    "type": "PipeWire:Interface:Core",
    "version": 4,
    "permissions": [ "r", "w", "x", "m" ],
    "info": {
      "cookie": 1234,
      "user-name": "user",
      "host-name": "x13s",
      "version": "1.0.5",
      "name": "pipewire-0",
      "change-mask": [ "props" ],
      "props": { "core.name": "pipewire-0", "cpu.max-align": 32 }
    }
  },
  {
    "id": 31,
    "type": "PipeWire:Interface:Device",
    "version": 3,
    "info": { "props": { "device.api": "libcamera" } }
  },
  {
    "id": 52,
    "type": "PipeWire:Interface:Node",
    "version": 3,
    "props": { "object.id": 52, "media.class": "Video/Source" },
    "info": {
      "max-input-ports": 0,
      "max-output-ports": 1,
      "state": "suspended",
      "error": null,
      "props": {
        "media.role": "Camera",
        "api.libcamera.location": "front",
        "device.product.name": "ov5675",
        "object.id": 52,
        "node.pause-on-idle": false,
        "node.param": { "nested": true }
      }
    }
  }
]
[
  {
    "id": 52,
    "type": "PipeWire:Interface:Node",
    "version": 3,
    "info": { "state": "running", "error": null, "props": { "media.role": "Camera" } }
  }
]
[
  { "id": 52, "info": null },
  { "id": 77, "info": null }
]
`

func TestMonitor_ConsumeSampleStream(t *testing.T) {
	core := NewCore(zap.NewNop())
	reg := core.Registry()

	var (
		globals []string
		removed []uint32
		infos   []*NodeInfo
	)
	reg.AddListener(RegistryEvents{
		Global: func(g *Global) {
			globals = append(globals, g.Type)
			if g.Type != TypeNode {
				return
			}
			node, err := reg.Bind(g)
			require.NoError(t, err)
			node.AddListener(NodeEvents{Info: func(info *NodeInfo) { infos = append(infos, info) }})
		},
		GlobalRemove: func(id uint32) { removed = append(removed, id) },
	})

	var coreVersion string
	core.AddListener(CoreEvents{Info: func(info *CoreInfo) { coreVersion = info.Version }})

	m := NewMonitor("", core, zap.NewNop())
	require.NoError(t, m.Consume(strings.NewReader(sampleDump), syncInvoker{}))

	assert.Equal(t, []string{TypeCore, TypeDevice, TypeNode}, globals)
	assert.Equal(t, "1.0.5", coreVersion)
	assert.Equal(t, []uint32{52}, removed, "unknown ids are not reported as removed")

	require.Len(t, infos, 2)
	assert.Equal(t, NodeStateSuspended, infos[0].State)
	assert.Equal(t, "Camera", infos[0].Props["media.role"])
	assert.Equal(t, "front", infos[0].Props["api.libcamera.location"])
	assert.Equal(t, "ov5675", infos[0].Props["device.product.name"])
	assert.Equal(t, "52", infos[0].Props["object.id"])
	assert.Equal(t, "false", infos[0].Props["node.pause-on-idle"])
	_, nested := infos[0].Props["node.param"]
	assert.False(t, nested)

	assert.Equal(t, NodeStateRunning, infos[1].State)
	assert.Equal(t, 2, reg.Len())
}

func TestMonitor_ConsumeRejectsGarbage(t *testing.T) {
	m := NewMonitor("", NewCore(zap.NewNop()), zap.NewNop())
	err := m.Consume(strings.NewReader(`[{"id": 1}] {not json`), syncInvoker{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode pw-dump output")
}

func TestMonitor_ReappearedIDIsAnnouncedAgain(t *testing.T) {
	core := NewCore(zap.NewNop())
	announced := 0
	core.Registry().AddListener(RegistryEvents{Global: func(*Global) { announced++ }})

	stream := `[{"id": 5, "type": "PipeWire:Interface:Node", "info": {"state": "idle"}}]
[{"id": 5, "info": null}]
[{"id": 5, "type": "PipeWire:Interface:Node", "info": {"state": "idle"}}]`

	m := NewMonitor("", core, zap.NewNop())
	require.NoError(t, m.Consume(strings.NewReader(stream), syncInvoker{}))
	assert.Equal(t, 2, announced)
}

func TestMonitor_StartReportsExitAsFatal(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	script := filepath.Join(t.TempDir(), "pw-dump")
	body := "#!/bin/sh\necho '[{\"id\": 5, \"type\": \"PipeWire:Interface:Node\", \"info\": {\"state\": \"running\"}}]'\necho 'connection refused' >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))

	core := NewCore(zap.NewNop())
	announced := 0
	core.Registry().AddListener(RegistryEvents{Global: func(*Global) { announced++ }})

	var fatalID uint32 = 99
	var fatalMsg string
	core.AddListener(CoreEvents{Error: func(id uint32, seq int, res int, message string) {
		fatalID = id
		fatalMsg = message
	}})

	invoker := make(chanInvoker, 8)
	m := NewMonitor(script, core, zap.NewNop())
	require.NoError(t, m.Start(context.Background(), invoker))

	deadline := time.After(5 * time.Second)
	for fatalMsg == "" {
		select {
		case fn := <-invoker:
			fn()
		case <-deadline:
			t.Fatal("no fatal error reported")
		}
	}

	assert.Equal(t, 1, announced)
	assert.Equal(t, uint32(0), fatalID)
	assert.Contains(t, fatalMsg, "pw-dump exited")
	assert.Contains(t, fatalMsg, "connection refused")
}

func TestMonitor_StartMissingBinary(t *testing.T) {
	m := NewMonitor(filepath.Join(t.TempDir(), "missing"), NewCore(zap.NewNop()), zap.NewNop())
	err := m.Start(context.Background(), syncInvoker{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
}
