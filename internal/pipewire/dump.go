package pipewire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"
)

// dumpObject is one element of a pw-dump JSON array. A removed object is
// printed with only its id and "info": null.
type dumpObject struct {
	ID      uint32          `json:"id"`
	Type    string          `json:"type"`
	Version int             `json:"version"`
	Props   map[string]any  `json:"props"`
	Info    json.RawMessage `json:"info"`
}

type dumpNodeInfo struct {
	State string         `json:"state"`
	Error *string        `json:"error"`
	Props map[string]any `json:"props"`
}

type dumpCoreInfo struct {
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Props   map[string]any `json:"props"`
}

func (o *dumpObject) removed() bool {
	return o.Type == ""
}

func (o *dumpObject) hasInfo() bool {
	return len(o.Info) > 0 && string(o.Info) != "null"
}

// feed turns pw-dump objects into registry events. It remembers which ids it
// has announced so that repeated objects become updates.
type feed struct {
	core   *Core
	logger *zap.Logger
	known  map[uint32]string
}

func newFeed(core *Core, logger *zap.Logger) *feed {
	return &feed{
		core:   core,
		logger: logger,
		known:  make(map[uint32]string),
	}
}

func (f *feed) apply(obj dumpObject) {
	registry := f.core.Registry()

	if obj.removed() {
		if _, ok := f.known[obj.ID]; !ok {
			return
		}
		delete(f.known, obj.ID)
		registry.Remove(obj.ID)
		return
	}

	if _, ok := f.known[obj.ID]; !ok {
		f.known[obj.ID] = obj.Type
		registry.Announce(Global{
			ID:      obj.ID,
			Type:    obj.Type,
			Version: obj.Version,
			Props:   propertiesFrom(obj.Props),
		})
	}

	if !obj.hasInfo() {
		return
	}

	switch obj.Type {
	case TypeNode:
		var info dumpNodeInfo
		if err := json.Unmarshal(obj.Info, &info); err != nil {
			f.logger.Warn("Failed to parse node info",
				zap.Uint32("id", obj.ID),
				zap.Error(err))
			return
		}
		nodeInfo := NodeInfo{
			ID:    obj.ID,
			State: ParseNodeState(info.State),
			Props: propertiesFrom(info.Props),
		}
		if info.Error != nil {
			nodeInfo.Error = *info.Error
		}
		registry.Update(nodeInfo)

	case TypeCore:
		var info dumpCoreInfo
		if err := json.Unmarshal(obj.Info, &info); err != nil {
			f.logger.Warn("Failed to parse core info", zap.Error(err))
			return
		}
		f.core.SetInfo(CoreInfo{
			ID:      obj.ID,
			Name:    info.Name,
			Version: info.Version,
			Props:   propertiesFrom(info.Props),
		})
	}
}

// propertiesFrom flattens a JSON property object. Nested values are dropped;
// numbers and booleans keep their JSON spelling.
func propertiesFrom(raw map[string]any) Properties {
	if raw == nil {
		return nil
	}

	props := make(Properties, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			props[key] = v
		case json.Number:
			props[key] = v.String()
		case float64:
			props[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			props[key] = strconv.FormatBool(v)
		}
	}
	return props
}

// decodeStream reads successive JSON arrays from r and passes each batch to
// handle. It returns nil at end of stream.
func decodeStream(r io.Reader, handle func(batch []dumpObject) bool) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	for {
		var batch []dumpObject
		if err := dec.Decode(&batch); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode pw-dump output: %w", err)
		}
		if !handle(batch) {
			return nil
		}
	}
}
