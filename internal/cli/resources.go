package cli

import (
	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/output"
	"github.com/vburojevic/runwatch/internal/registry"
)

// ResourcesCmd lists configured resources
type ResourcesCmd struct {
	Type  []string `short:"t" help:"Only list these resource types (repeatable)"`
	Group []string `short:"g" help:"Only list resources of these groups (repeatable)"`
}

// Run executes the resources command
func (c *ResourcesCmd) Run(globals *Globals) error {
	resources, err := selectResources(globals, c.Type, c.Group)
	if err != nil {
		return outputError(globals, codeConfig, err)
	}

	reg := registry.Default(globals.Log().Named("registry"))
	links := func(res domain.Resource) string {
		h, err := reg.Get(res.Type)
		if err != nil || h.Links == nil {
			return ""
		}
		return h.Links.RunLink(res, "")
	}
	return output.NewEmitter(globals.Format, globals.Stdout).Resources(resources, links)
}
