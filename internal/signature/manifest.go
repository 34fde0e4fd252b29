// Package signature indexes pre-parsed signature declarations stored as YAML manifests
// (`*.sig.yml`). Each manifest lists classes and modules, their mixins, and methods with one or
// more overloads.
package signature

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/skelly-dev/rubyindex/internal/entry"
)

// Manifest is the top-level document of a signature file.
type Manifest struct {
	Declarations []Declaration `yaml:"declarations"`
}

// Declaration is a namespace, constant or class alias.
type Declaration struct {
	Kind       string        `yaml:"kind"` // class | module | constant | class_alias | module_alias
	Name       string        `yaml:"name"`
	Superclass string        `yaml:"superclass,omitempty"`
	Target     string        `yaml:"target,omitempty"`
	Comment    string        `yaml:"comment,omitempty"`
	Location   *Span         `yaml:"location,omitempty"`
	Line       int           `yaml:"line,omitempty"`
	Includes   []string      `yaml:"includes,omitempty"`
	Prepends   []string      `yaml:"prepends,omitempty"`
	Extends    []string      `yaml:"extends,omitempty"`
	Members    []Member      `yaml:"members,omitempty"`
	Nested     []Declaration `yaml:"declarations,omitempty"`

	sourceLine int
}

func (d *Declaration) UnmarshalYAML(node *yaml.Node) error {
	type plain Declaration
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*d = Declaration(decoded)
	d.sourceLine = node.Line
	return nil
}

// Member is a method or attribute declared inside a namespace.
type Member struct {
	Kind       string     `yaml:"kind"` // method | singleton_method | attr_reader | attr_writer | attr_accessor
	Name       string     `yaml:"name"`
	Visibility string     `yaml:"visibility,omitempty"`
	Comment    string     `yaml:"comment,omitempty"`
	Location   *Span      `yaml:"location,omitempty"`
	Line       int        `yaml:"line,omitempty"`
	Overloads  []Overload `yaml:"overloads,omitempty"`

	sourceLine int
}

func (m *Member) UnmarshalYAML(node *yaml.Node) error {
	type plain Member
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*m = Member(decoded)
	m.sourceLine = node.Line
	return nil
}

// Overload is one signature of a method, grouped the way signature languages group parameters.
type Overload struct {
	RequiredPositionals []Param  `yaml:"required_positionals,omitempty"`
	OptionalPositionals []Param  `yaml:"optional_positionals,omitempty"`
	RequiredKeywords    []string `yaml:"required_keywords,omitempty"`
	OptionalKeywords    []string `yaml:"optional_keywords,omitempty"`
	TrailingPositionals []Param  `yaml:"trailing_positionals,omitempty"`
	RestPositionals     *Param   `yaml:"rest_positionals,omitempty"`
	RestKeywords        *Param   `yaml:"rest_keywords,omitempty"`
	Block               *Block   `yaml:"block,omitempty"`
}

// Param is a positional parameter. It may be written as a bare name or as a mapping with an
// optional name and a type; positionals without a name are numbered.
type Param struct {
	Name string `yaml:"name,omitempty"`
	Type string `yaml:"type,omitempty"`
}

func (p *Param) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		p.Name = node.Value
		return nil
	}
	type plain Param
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*p = Param(decoded)
	return nil
}

// Block describes the block an overload accepts, with the required positionals of its function
// type. Only required blocks become parameters.
type Block struct {
	Required            bool    `yaml:"required"`
	RequiredPositionals []Param `yaml:"required_positionals,omitempty"`
}

// Span is an explicit source range inside the signature file.
type Span struct {
	StartLine   int `yaml:"start_line"`
	EndLine     int `yaml:"end_line"`
	StartColumn int `yaml:"start_column"`
	EndColumn   int `yaml:"end_column"`
}

// location prefers an explicit span, then an explicit line, then the line of the YAML node.
func location(span *Span, line, sourceLine int) entry.Location {
	if span != nil {
		return entry.NewLocation(span.StartLine, span.EndLine, span.StartColumn, span.EndColumn)
	}
	if line == 0 {
		line = sourceLine
	}
	return entry.NewLocation(line, line, 0, 0)
}

// Decode parses a manifest.
func Decode(content []byte) (*Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(content, &manifest); err != nil {
		return nil, fmt.Errorf("decode signature manifest: %w", err)
	}
	return &manifest, nil
}
