package domain

// EntityClass separates the two disjoint registries.
type EntityClass string

const (
	EntityTool  EntityClass = "tool"
	EntityModel EntityClass = "model"
)

// Entity is one known product or model with its surface aliases.
type Entity struct {
	ID      string      `json:"id" yaml:"id"`
	Class   EntityClass `json:"class" yaml:"class"`
	Name    string      `json:"name" yaml:"name"`
	Aliases []string    `json:"aliases" yaml:"aliases"`
}

// EntityMatch is a scored association between text and an entity.
type EntityMatch struct {
	EntityID    string
	Confidence  float64
	EntityClass EntityClass
}
