package transform

import (
	"fmt"
	"sort"

	"github.com/jo-hoe/imagebot/internal/raster"
)

// Transform is a pure function over a raster image. Implementations never
// modify their input and always return a newly allocated image.
type Transform interface {
	Command() Command
	Apply(img *raster.Image) (*raster.Image, error)
}

// Factory creates a transform from configuration parameters. A nil or empty
// map yields the default behaviour.
type Factory func(params map[string]any) (Transform, error)

// CommandConfig overrides the parameters of one command.
type CommandConfig struct {
	Name   string
	Params map[string]any
}

var factories = make(map[Command]Factory)

// register adds the factory for cmd. Called from init functions only.
func register(cmd Command, factory Factory) error {
	if !cmd.Valid() {
		return fmt.Errorf("invalid command %s", cmd)
	}
	if factory == nil {
		return fmt.Errorf("factory for %s cannot be nil", cmd)
	}
	if _, exists := factories[cmd]; exists {
		return fmt.Errorf("command %s is already registered", cmd)
	}
	factories[cmd] = factory
	return nil
}

// Registry maps every Command to exactly one Transform.
type Registry struct {
	transforms map[Command]Transform
}

// NewRegistry builds a transform for every command, applying parameter
// overrides from configs. It fails if a config names an unknown command, a
// command is configured twice, or any command has no transform.
func NewRegistry(configs []CommandConfig) (*Registry, error) {
	overrides := make(map[Command]map[string]any, len(configs))
	for i, cfg := range configs {
		cmd, err := ParseCommand(cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("command config at index %d: %w", i, err)
		}
		if _, dup := overrides[cmd]; dup {
			return nil, fmt.Errorf("duplicate command config: %s", cmd)
		}
		overrides[cmd] = cfg.Params
	}

	transforms := make(map[Command]Transform, len(commandNames))
	for _, cmd := range AllCommands() {
		factory, ok := factories[cmd]
		if !ok {
			return nil, fmt.Errorf("no transform registered for command %s", cmd)
		}
		t, err := factory(overrides[cmd])
		if err != nil {
			return nil, fmt.Errorf("failed to create transform %s: %w", cmd, err)
		}
		transforms[cmd] = t
	}

	return &Registry{transforms: transforms}, nil
}

// Lookup returns the transform for cmd.
func (r *Registry) Lookup(cmd Command) (Transform, error) {
	t, ok := r.transforms[cmd]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", cmd)
	}
	return t, nil
}

// Commands returns the registered commands in declaration order.
func (r *Registry) Commands() []Command {
	cmds := make([]Command, 0, len(r.transforms))
	for cmd := range r.transforms {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })
	return cmds
}
