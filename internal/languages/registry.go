package languages

import (
	"github.com/skelly-dev/rubyindex/internal/parser"
	"github.com/skelly-dev/rubyindex/internal/signature"
)

// NewDefaultRegistry creates a registry with every supported producer
func NewDefaultRegistry() *parser.Registry {
	r := parser.NewRegistry()

	r.Register(NewRubyParser())
	r.Register(signature.NewParser())

	return r
}
