package models

// Template is an immutable set of task blueprints for one service category.
type Template struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Category    string      `json:"category" yaml:"category"`
	Blueprints  []Blueprint `json:"blueprints" yaml:"blueprints"`
}

// Blueprint describes a task to instantiate when a booking of the template
// category is confirmed. The n-th blueprint falls due n days after generation.
type Blueprint struct {
	Title          string   `json:"title" yaml:"title"`
	Description    string   `json:"description" yaml:"description"`
	Priority       Priority `json:"priority" yaml:"priority"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty" yaml:"estimated_hours,omitempty"`
	Tags           []string `json:"tags" yaml:"tags"`
}
