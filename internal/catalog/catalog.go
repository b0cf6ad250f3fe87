// Package catalog loads character templates and the avatar pool.
//
// Catalogs are written in CUE and checked against an embedded #Catalog
// schema. The default catalog is embedded in the binary; a directory of
// .cue files can replace it.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/brawl/internal/game"
)

//go:embed schema.cue
var schemaCUE []byte

//go:embed characters.cue
var defaultCUE []byte

// Template is a purchasable character definition.
type Template struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Cost   int    `json:"cost"`
	Attack int    `json:"attack"`
	Health int    `json:"health"`
}

// Offer returns a shop offer for t.
func (t Template) Offer() *game.Character {
	return &game.Character{
		TemplateID: t.ID,
		Name:       t.Name,
		Cost:       t.Cost,
		BaseAttack: t.Attack,
		BaseHealth: t.Health,
	}
}

// Catalog is an immutable set of templates and avatars.
type Catalog struct {
	templates []Template
	byID      map[string]Template
	avatars   []string
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCUE, "characters.cue")
}

// MustDefault is Default for package-level and test use.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse compiles a single CUE document into a catalog.
func Parse(data []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", filename, err)
	}
	return build(ctx, v)
}

// LoadDir loads and unifies every .cue file in dir. Catalog files carry
// no package clause, like the embedded one; files that declare a package
// are ignored.
func LoadDir(dir string) (*Catalog, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir, Package: "_"})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	ctx := cuecontext.New()
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}
	return build(ctx, v)
}

func build(ctx *cue.Context, v cue.Value) (*Catalog, error) {
	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v = schema.LookupPath(cue.ParsePath("#Catalog")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]Template)}

	iter, err := v.LookupPath(cue.ParsePath("characters")).Fields()
	if err != nil {
		return nil, fmt.Errorf("characters: %w", err)
	}
	for iter.Next() {
		t := Template{ID: iter.Label()}
		if err := iter.Value().Decode(&t); err != nil {
			return nil, fmt.Errorf("character %s: %w", t.ID, err)
		}
		t.ID = iter.Label()
		c.templates = append(c.templates, t)
		c.byID[t.ID] = t
	}
	if len(c.templates) == 0 {
		return nil, fmt.Errorf("catalog declares no characters")
	}
	sort.Slice(c.templates, func(i, j int) bool {
		return c.templates[i].ID < c.templates[j].ID
	})

	if err := v.LookupPath(cue.ParsePath("avatars")).Decode(&c.avatars); err != nil {
		return nil, fmt.Errorf("avatars: %w", err)
	}
	if len(c.avatars) < game.AvatarChoices {
		return nil, fmt.Errorf("catalog needs at least %d avatars, has %d", game.AvatarChoices, len(c.avatars))
	}

	return c, nil
}

// Templates returns all templates ordered by id.
func (c *Catalog) Templates() []Template {
	return append([]Template(nil), c.templates...)
}

// Template looks up a template by id.
func (c *Catalog) Template(id string) (Template, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Pool returns the templates a player of the given level may be offered,
// ordered by id.
func (c *Catalog) Pool(level int) []Template {
	var out []Template
	for _, t := range c.templates {
		if t.Cost <= level {
			out = append(out, t)
		}
	}
	return out
}

// Avatars returns the avatar pool.
func (c *Catalog) Avatars() []string {
	return append([]string(nil), c.avatars...)
}
