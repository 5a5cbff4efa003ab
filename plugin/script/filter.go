package script

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kasuganosora/nightwatch/game/world"
	"github.com/kasuganosora/nightwatch/plugin/hook"
)

// Filter is one event filter script. The script sees the pending event as
// the global `event`; its last expression decides the outcome: false drops
// the event, an object overrides the event's name, from and to fields,
// anything else lets it through unchanged.
type Filter struct {
	Name string
	Src  string
}

// LoadFilters reads every *.js file in dir, sorted by file name. An empty
// dir yields no filters.
func LoadFilters(dir string) ([]Filter, error) {
	if dir == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.js"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	filters := make([]Filter, 0, len(matches))
	for _, path := range matches {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("script: read %s: %w", path, err)
		}
		filters = append(filters, Filter{
			Name: strings.TrimSuffix(filepath.Base(path), ".js"),
			Src:  string(b),
		})
	}
	return filters, nil
}

// Register installs filters on hook.BeforeEventPublish in order.
func Register(hc *hook.HookCenter, sb *Sandbox, filters []Filter, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i, f := range filters {
		hc.Register(hook.BeforeEventPublish, i, "script:"+f.Name, f.hook(sb))
		logger.Info("event filter registered", zap.String("filter", f.Name))
	}
}

func (f Filter) hook(sb *Sandbox) hook.HookFn {
	return func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		ev, ok := data.(*world.Event)
		if !ok || ev == nil {
			return data, nil
		}
		obj, err := toObject(ev)
		if err != nil {
			return data, err
		}
		out, err := sb.Eval(ctx, f.Src, map[string]any{"event": obj})
		if err != nil {
			return data, err
		}
		switch v := out.(type) {
		case bool:
			if !v {
				return data, hook.ErrInterrupt
			}
		case map[string]any:
			return override(ev, v), nil
		}
		return data, nil
	}
}

func toObject(ev *world.Event) (map[string]any, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// override copies the script-editable string fields from m onto a copy of ev.
func override(ev *world.Event, m map[string]any) *world.Event {
	next := *ev
	if s, ok := m["name"].(string); ok {
		next.Name = s
	}
	if s, ok := m["from"].(string); ok {
		next.From = s
	}
	if s, ok := m["to"].(string); ok {
		next.To = s
	}
	return &next
}
