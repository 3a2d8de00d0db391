// Package economy provides colony jobs and the resource bundles they produce.
package economy

import (
	"fmt"
	"strings"
)

// Resource is a stockpiled colony resource.
type Resource uint8

const (
	ResourceNone Resource = iota // Effect-only jobs produce nothing
	Food
	Minerals
	Energy
	Credits
	Research
	Production
)

var resourceNames = [...]string{"none", "food", "minerals", "energy", "credits", "research", "production"}

// AllResources lists every stockpiled resource in display order.
var AllResources = []Resource{Food, Minerals, Energy, Credits, Research, Production}

func (r Resource) String() string {
	if int(r) < len(resourceNames) {
		return resourceNames[r]
	}
	return fmt.Sprintf("resource(%d)", uint8(r))
}

// MarshalText encodes the resource by name.
func (r Resource) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses a resource name.
func (r *Resource) UnmarshalText(b []byte) error {
	for i, n := range resourceNames {
		if strings.EqualFold(string(b), n) {
			*r = Resource(i)
			return nil
		}
	}
	return fmt.Errorf("unknown resource %q", string(b))
}

// Bundle is an amount of each resource.
type Bundle struct {
	Food       float64 `json:"food" yaml:"food"`
	Minerals   float64 `json:"minerals" yaml:"minerals"`
	Energy     float64 `json:"energy" yaml:"energy"`
	Credits    float64 `json:"credits" yaml:"credits"`
	Research   float64 `json:"research" yaml:"research"`
	Production float64 `json:"production" yaml:"production"`
}

func (b *Bundle) slot(r Resource) *float64 {
	switch r {
	case Food:
		return &b.Food
	case Minerals:
		return &b.Minerals
	case Energy:
		return &b.Energy
	case Credits:
		return &b.Credits
	case Research:
		return &b.Research
	case Production:
		return &b.Production
	}
	return nil
}

// Get returns the amount held of r.
func (b Bundle) Get(r Resource) float64 {
	if p := b.slot(r); p != nil {
		return *p
	}
	return 0
}

// Add adds v of r. ResourceNone is ignored.
func (b *Bundle) Add(r Resource, v float64) {
	if p := b.slot(r); p != nil {
		*p += v
	}
}

// Set overwrites the amount of r.
func (b *Bundle) Set(r Resource, v float64) {
	if p := b.slot(r); p != nil {
		*p = v
	}
}

// Scale multiplies the amount of r by f.
func (b *Bundle) Scale(r Resource, f float64) {
	if p := b.slot(r); p != nil {
		*p *= f
	}
}

// Plus returns the element-wise sum.
func (b Bundle) Plus(o Bundle) Bundle {
	for _, r := range AllResources {
		b.Add(r, o.Get(r))
	}
	return b
}

// IsZero reports whether every amount is zero.
func (b Bundle) IsZero() bool {
	return b == Bundle{}
}
