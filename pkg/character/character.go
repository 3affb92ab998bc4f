// Package character loads the agent's YAML character file: identity, bio,
// the static fallback reply, the plugin list, and the settings map that
// plugin constructors read. Values support ${ENV} expansion, and a lookup
// at runtime prefers the process environment over the file.
package character

import (
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/wilhg/conduit/pkg/errmodel"
)

// Character is the agent definition.
type Character struct {
	// Name is the agent's display name. Required.
	Name string `yaml:"name"`

	// Bio lines describe the agent; providers may surface them as context.
	Bio []string `yaml:"bio,omitempty"`

	// StaticReply answers messages no action claims when generation is
	// unavailable.
	StaticReply string `yaml:"static_reply,omitempty"`

	// Plugins lists the plugin names to construct, in registration order.
	Plugins []string `yaml:"plugins,omitempty"`

	// Settings holds plugin configuration keyed by setting name. Values
	// support ${ENV} references.
	Settings Settings `yaml:"settings,omitempty"`
}

// Settings is the plugin configuration map.
type Settings map[string]string

// Lookup resolves a setting. The process environment wins over the file, so
// deployments can override a character without editing it.
func (s Settings) Lookup(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return s[key]
}

// Load reads and validates a character file. ${ENV} references in settings
// and the static reply are expanded at load time; unset references expand
// to the empty string.
func Load(path string) (*Character, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errmodel.Config("read_failed", "character file is unreadable",
			map[string]any{"path": path})
	}
	return Parse(raw)
}

// Parse decodes character YAML.
func Parse(raw []byte) (*Character, error) {
	var c Character
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, errmodel.New(errmodel.CategoryConfig, "bad_yaml", "character file failed to parse", nil, err)
	}
	c.expand()
	if err := c.validate(); err != nil {
		return nil, err
	}
	if c.Settings == nil {
		c.Settings = Settings{}
	}
	return &c, nil
}

func (c *Character) expand() {
	c.StaticReply = os.ExpandEnv(c.StaticReply)
	for k, v := range c.Settings {
		c.Settings[k] = os.ExpandEnv(v)
	}
}

func (c *Character) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errmodel.Config("missing_key", "character needs a name",
			map[string]any{"key": "name"})
	}
	for _, p := range c.Plugins {
		if strings.TrimSpace(p) == "" {
			return errmodel.Config("missing_key", "plugin list has an empty entry",
				map[string]any{"key": "plugins"})
		}
	}
	return nil
}
