package query

import (
	"fmt"
	"runtime"

	"github.com/rileyhilliard/netpilot/internal/errors"
)

// BuilderOptions selects and configures a Builder.
type BuilderOptions struct {
	// Name is auto, powershell or template.
	Name       string
	PowerShell string
	Shell      string
	Commands   map[string]string
	Defaults   map[string]string

	// Remote is true when commands run over SSH.
	Remote bool

	// GOOS overrides runtime.GOOS for auto selection (tests).
	GOOS string
}

// NewBuilder picks the builder for the options. "auto" uses PowerShell on
// Windows and for remote hosts, and the template builder everywhere else.
func NewBuilder(o BuilderOptions) (Builder, error) {
	goos := o.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	name := o.Name
	if name == "" || name == "auto" {
		if goos == "windows" || o.Remote {
			name = "powershell"
		} else {
			name = "template"
		}
	}

	switch name {
	case "powershell":
		return NewPowerShellBuilder(o.PowerShell, o.Defaults), nil
	case "template":
		return NewTemplateBuilder(o.Shell, o.Commands, o.Defaults), nil
	}
	return nil, errors.New(errors.ErrConfig,
		fmt.Sprintf("Unknown query builder '%s'", o.Name),
		"Use one of: auto, powershell, template")
}
