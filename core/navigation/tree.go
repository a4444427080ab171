// Package navigation holds the authored sidebar tree and the path to
// permission-key mapping derived from it.
package navigation

import (
	_ "embed"
	"fmt"
	"iter"

	"gopkg.in/yaml.v3"
)

type Item struct {
	Label         string `yaml:"label" json:"label"`
	Icon          string `yaml:"icon" json:"icon"`
	Path          string `yaml:"path" json:"path"`
	PermissionKey string `yaml:"permission" json:"permission_key"`
}

type Section struct {
	Heading string `yaml:"heading" json:"heading"`
	Items   []Item `yaml:"items" json:"items"`
}

// Tree is immutable after Parse; accessors hand out copies.
type Tree struct {
	sections []Section
}

type treeDoc struct {
	Sections []Section `yaml:"sections"`
}

//go:embed navigation.yaml
var defaultYAML []byte

var defaultTree = mustParse(defaultYAML)

func Parse(data []byte) (*Tree, error) {
	var doc treeDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("navigation: parse tree: %w", err)
	}
	return NewTree(doc.Sections), nil
}

func mustParse(data []byte) *Tree {
	t, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return t
}

func NewTree(sections []Section) *Tree {
	return &Tree{sections: cloneSections(sections)}
}

// Default is the shipped tree.
func Default() *Tree { return defaultTree }

func (t *Tree) Sections() []Section {
	if t == nil {
		return nil
	}
	return cloneSections(t.sections)
}

// AllItems yields every item in authoring order. The sequence can be ranged
// over any number of times.
func (t *Tree) AllItems() iter.Seq[Item] {
	return func(yield func(Item) bool) {
		if t == nil {
			return
		}
		for _, s := range t.sections {
			for _, it := range s.Items {
				if !yield(it) {
					return
				}
			}
		}
	}
}

func AllItems() iter.Seq[Item] { return defaultTree.AllItems() }

// VisibleSections keeps the items canRead admits and drops sections left empty.
func (t *Tree) VisibleSections(canRead func(permissionKey string) bool) []Section {
	if t == nil || canRead == nil {
		return nil
	}
	var out []Section
	for _, s := range t.sections {
		var items []Item
		for _, it := range s.Items {
			if canRead(it.PermissionKey) {
				items = append(items, it)
			}
		}
		if len(items) > 0 {
			out = append(out, Section{Heading: s.Heading, Items: items})
		}
	}
	return out
}

func cloneSections(in []Section) []Section {
	out := make([]Section, len(in))
	for i, s := range in {
		items := make([]Item, len(s.Items))
		copy(items, s.Items)
		out[i] = Section{Heading: s.Heading, Items: items}
	}
	return out
}
