package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// pluginRegistry keeps plugins by name.
var (
	pluginsMu sync.RWMutex
	plugins   = map[string]*Plugin{}
)

// RegisterPlugin registers a Plugin by name.
func RegisterPlugin(p *Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin is nil")
	}
	if p.Name == "" {
		return fmt.Errorf("plugin name is empty")
	}
	pluginsMu.Lock()
	defer pluginsMu.Unlock()
	if _, exists := plugins[p.Name]; exists {
		return fmt.Errorf("plugin %q already registered", p.Name)
	}
	plugins[p.Name] = p
	return nil
}

// ResolvePlugin returns a Plugin by name.
func ResolvePlugin(name string) (*Plugin, bool) {
	pluginsMu.RLock()
	defer pluginsMu.RUnlock()
	p, ok := plugins[name]
	return p, ok
}

// RangePlugins iterates registered plugins in name order. Return false from
// fn to stop early.
func RangePlugins(fn func(p *Plugin) bool) {
	pluginsMu.RLock()
	names := make([]string, 0, len(plugins))
	for n := range plugins {
		names = append(names, n)
	}
	sort.Strings(names)
	snapshot := make([]*Plugin, 0, len(names))
	for _, n := range names {
		snapshot = append(snapshot, plugins[n])
	}
	pluginsMu.RUnlock()
	for _, p := range snapshot {
		if !fn(p) {
			return
		}
	}
}

// Plugins returns registered plugins in name order.
func Plugins() []*Plugin {
	var out []*Plugin
	RangePlugins(func(p *Plugin) bool {
		out = append(out, p)
		return true
	})
	return out
}

// FindAction looks an action up across the given plugins by exact name or
// simile, case-sensitively on the name and case-insensitively on similes.
func FindAction(ps []*Plugin, name string) (Action, *Plugin, bool) {
	for _, p := range ps {
		for _, a := range p.Actions {
			d := a.Describe()
			if d.Name == name {
				return a, p, true
			}
			for _, s := range d.Similes {
				if strings.EqualFold(s, name) {
					return a, p, true
				}
			}
		}
	}
	return nil, nil, false
}
