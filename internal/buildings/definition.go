package buildings

import "fmt"

// Definition is the immutable catalog entry for a building type.
type Definition struct {
	Type              Type      `yaml:"type" json:"type"`
	Name              string    `yaml:"name" json:"name"`
	Category          Category  `yaml:"category" json:"category"`
	MaxLevel          int       `yaml:"max_level" json:"max_level"`
	Cost              float64   `yaml:"cost" json:"cost"` // Credits
	Maintenance       float64   `yaml:"maintenance" json:"maintenance"`
	BuildTime         int       `yaml:"build_time" json:"build_time"` // Turns; informational
	MinInfrastructure int       `yaml:"min_infrastructure" json:"min_infrastructure"`
	Requires          Type      `yaml:"requires" json:"requires,omitempty"`
	Unique            bool      `yaml:"unique" json:"unique,omitempty"`
	Jobs              []JobSlot `yaml:"jobs" json:"jobs,omitempty"`
	Bonuses           Bonuses   `yaml:"bonuses" json:"bonuses"`
}

// PrerequisiteError reports why a building type cannot be constructed.
type PrerequisiteError struct {
	Type              Type
	Infrastructure    int
	MinInfrastructure int
	Requires          Type // Set when the required building is missing
}

func (e *PrerequisiteError) Error() string {
	if e.Requires != "" {
		return fmt.Sprintf("%s requires a %s", e.Type, e.Requires)
	}
	return fmt.Sprintf("%s requires infrastructure %d, colony has %d", e.Type, e.MinInfrastructure, e.Infrastructure)
}

// Unwrap lets callers match any prerequisite failure with errors.Is(err, ErrPrerequisite).
func (e *PrerequisiteError) Unwrap() error { return ErrPrerequisite }

// CanBuild checks the infrastructure floor and required building. has reports whether
// the colony owns a non-destroyed building of the given type.
func (d *Definition) CanBuild(infrastructure int, has func(Type) bool) error {
	if infrastructure < d.MinInfrastructure {
		return &PrerequisiteError{Type: d.Type, Infrastructure: infrastructure, MinInfrastructure: d.MinInfrastructure}
	}
	if d.Requires != "" && (has == nil || !has(d.Requires)) {
		return &PrerequisiteError{Type: d.Type, Infrastructure: infrastructure, MinInfrastructure: d.MinInfrastructure, Requires: d.Requires}
	}
	return nil
}
