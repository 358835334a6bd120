package transform

import (
	"fmt"
	"strings"
)

// Command identifies one of the supported image transformations.
type Command int

const (
	BlackWhite Command = iota
	Blur
	Edge
	Contour
	Erosion
	Dilation
	Histogram
	Sampling
)

var commandNames = [...]string{
	BlackWhite: "black_white",
	Blur:       "blur",
	Edge:       "edge",
	Contour:    "contour",
	Erosion:    "erosion",
	Dilation:   "dilation",
	Histogram:  "histogram",
	Sampling:   "sampling",
}

// chat clients type commands without underscores
var commandAliases = map[string]Command{
	"blackwhite": BlackWhite,
}

// AllCommands returns every command in declaration order.
func AllCommands() []Command {
	all := make([]Command, len(commandNames))
	for i := range commandNames {
		all[i] = Command(i)
	}
	return all
}

func (c Command) Valid() bool {
	return c >= 0 && int(c) < len(commandNames)
}

func (c Command) String() string {
	if !c.Valid() {
		return fmt.Sprintf("command(%d)", int(c))
	}
	return commandNames[c]
}

// Token returns the chat command a user types to invoke c, without the slash.
func (c Command) Token() string {
	return strings.ReplaceAll(c.String(), "_", "")
}

// ParseCommand accepts canonical names ("black_white") and chat tokens
// ("/blackwhite", "/blur@somebot"), case-insensitively.
func ParseCommand(token string) (Command, error) {
	s := strings.ToLower(strings.TrimSpace(token))
	s = strings.TrimPrefix(s, "/")
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[:at]
	}

	for i, name := range commandNames {
		if s == name {
			return Command(i), nil
		}
	}
	if cmd, ok := commandAliases[s]; ok {
		return cmd, nil
	}
	return 0, fmt.Errorf("unknown command: %q", token)
}
