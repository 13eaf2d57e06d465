package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML distinguishes the three shapes a post_commands entry may
// take: a bare scalar string (raw shell), a mapping with a "replace" key
// (file-edit action), or a mapping with a "command" key (structured shell
// command).
func (i *PostCommandItem) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&i.Raw)
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("post_commands entry must be a string or mapping, got kind %d", value.Kind)
	}
	var probe map[string]yaml.Node
	if err := value.Decode(&probe); err != nil {
		return err
	}
	if _, ok := probe["replace"]; ok {
		var wrapper struct {
			Replace ReplaceSpec `yaml:"replace"`
		}
		if err := value.Decode(&wrapper); err != nil {
			return err
		}
		i.Replace = &wrapper.Replace
		return nil
	}
	var cmd CommandSpec
	if err := value.Decode(&cmd); err != nil {
		return err
	}
	i.Command = &cmd
	return nil
}

// MarshalYAML renders the item back to whichever shape it was constructed
// from, so config-show round-trips.
func (i PostCommandItem) MarshalYAML() (interface{}, error) {
	switch {
	case i.Replace != nil:
		return map[string]ReplaceSpec{"replace": *i.Replace}, nil
	case i.Command != nil:
		return i.Command, nil
	default:
		return i.Raw, nil
	}
}
