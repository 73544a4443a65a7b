// Package bridge maps logging contexts to the loggers created within them.
//
// Each Context owns a Namespace of loggers keyed by name. Namespaces are
// created at most once per Context, and a logger, once stored, is returned
// for every later lookup of the same name in the same Context.
package bridge

import (
	"github.com/google/uuid"
)

// Context is an identity handle. Two Contexts are the same key only if they
// are the same pointer, whatever their names.
type Context struct {
	name string
	id   uuid.UUID
}

func NewContext(name string) *Context {
	return &Context{name: name, id: uuid.New()}
}

func (c *Context) Name() string { return c.name }

// ID is unique per Context and only used for diagnostics.
func (c *Context) ID() string { return c.id.String() }

func (c *Context) String() string {
	return c.name + "@" + c.id.String()[:8]
}
