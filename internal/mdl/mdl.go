package mdl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Manifest is the parsed semantic model (MDL) of a relational database.
// All four top-level collections are guaranteed non-nil after Parse.
type Manifest struct {
	Models        []Model        `json:"models"`
	Relationships []Relationship `json:"relationships"`
	Views         []View         `json:"views"`
	Metrics       []Metric       `json:"metrics"`
}

type Model struct {
	Name       string            `json:"name"`
	Columns    []Column          `json:"columns"`
	PrimaryKey string            `json:"primaryKey"`
	Properties map[string]string `json:"properties,omitempty"`
}

type Column struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Properties   map[string]string `json:"properties,omitempty"`
	Relationship string            `json:"relationship,omitempty"`
	Expression   string            `json:"expression,omitempty"`
	IsCalculated bool              `json:"isCalculated,omitempty"`
}

// JoinType is the declared cardinality of a relationship. Input is matched
// case-insensitively; use Relationship.Join to normalize.
type JoinType string

const (
	JoinManyToOne JoinType = "MANY_TO_ONE"
	JoinOneToMany JoinType = "ONE_TO_MANY"
	JoinOneToOne  JoinType = "ONE_TO_ONE"
)

type Relationship struct {
	Models    []string `json:"models"`
	Condition string   `json:"condition"`
	JoinType  string   `json:"joinType"`
}

// Join returns the normalized join type.
func (r Relationship) Join() JoinType {
	return JoinType(strings.ToUpper(strings.TrimSpace(r.JoinType)))
}

type View struct {
	Name       string            `json:"name"`
	Statement  string            `json:"statement"`
	Properties map[string]string `json:"properties,omitempty"`
}

type Metric struct {
	Name       string  `json:"name"`
	BaseObject string  `json:"baseObject"`
	Dimensions []Field `json:"dimension"`
	Measures   []Field `json:"measure"`
}

// Field is a dimension or measure column of a metric.
type Field struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Expression string `json:"expression,omitempty"`
}

// ParseError reports MDL input that is not well-formed JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid mdl json: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse validates and normalizes raw MDL text. Malformed JSON yields a
// *ParseError; missing top-level collections default to empty slices and are
// never an error.
func Parse(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &ParseError{Err: err}
	}
	if m.Models == nil {
		m.Models = []Model{}
	}
	if m.Relationships == nil {
		m.Relationships = []Relationship{}
	}
	if m.Views == nil {
		m.Views = []View{}
	}
	if m.Metrics == nil {
		m.Metrics = []Metric{}
	}
	return &m, nil
}
