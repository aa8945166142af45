package ddl

import (
	"encoding/json"
	"fmt"
	"strings"

	"semql-indexer/internal/mdl"
)

// ResolutionError reports a relationship that cannot be resolved against the
// model set: either it names a model that does not exist, or its join
// condition is not of the "a.x = b.y" shape.
type ResolutionError struct {
	Condition string
	Model     string // unknown model name; empty when the condition is malformed
}

func (e *ResolutionError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("relationship %q references unknown model %q", e.Condition, e.Model)
	}
	return fmt.Sprintf("relationship condition %q is not of the form \"a.x = b.y\"", e.Condition)
}

// Convert renders the manifest as an ordered sequence of DDL text blocks:
// one CREATE TABLE per model (in model order), then one synthetic table per
// metric, then one CREATE VIEW per view. Document identifiers downstream are
// positional, so this ordering must not change between releases.
func Convert(m *mdl.Manifest) ([]string, error) {
	tables, err := convertModels(m.Models, m.Relationships)
	if err != nil {
		return nil, err
	}
	commands := make([]string, 0, len(m.Models)+len(m.Metrics)+len(m.Views))
	commands = append(commands, tables...)
	commands = append(commands, convertMetrics(m.Metrics)...)
	commands = append(commands, convertViews(m.Views)...)
	return commands, nil
}

func convertModels(models []mdl.Model, relationships []mdl.Relationship) ([]string, error) {
	primaryKeys := make(map[string]string, len(models))
	for _, model := range models {
		primaryKeys[model.Name] = model.PrimaryKey
	}
	if err := resolveRelationships(relationships, primaryKeys); err != nil {
		return nil, err
	}

	commands := make([]string, 0, len(models))
	for _, model := range models {
		var lines []string
		for _, column := range model.Columns {
			// Relationship-marked columns are represented by the
			// foreign-key constraint synthesized below, not as plain columns.
			if column.Relationship != "" {
				continue
			}
			lines = append(lines, columnDDL(column, model.PrimaryKey))
		}
		for _, rel := range relationships {
			line, ok := foreignKeyLine(model.Name, rel, primaryKeys)
			if ok {
				lines = append(lines, line)
			}
		}

		var comment string
		if model.Properties != nil {
			comment = fmt.Sprintf("\n/* %s */\n", encodeProperties(aliasProperties(model.Properties)))
		}
		commands = append(commands, createTable(comment, model.Name, lines))
	}
	return commands, nil
}

func columnDDL(column mdl.Column, primaryKey string) string {
	var b strings.Builder
	if column.Properties != nil {
		fmt.Fprintf(&b, "-- %s\n  ", encodeProperties(aliasProperties(column.Properties)))
	}
	if column.IsCalculated {
		fmt.Fprintf(&b, "-- This column is a Calculated Field\n  -- column expression: %s\n  ", column.Expression)
	}
	b.WriteString(column.Name)
	b.WriteString(" ")
	b.WriteString(column.Type)
	if primaryKey != "" && column.Name == primaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	return b.String()
}

// foreignKeyLine renders the foreign-key constraint this relationship
// contributes to the given table, if any. Direction follows cardinality: the
// "many" side owns the foreign key, and a ONE_TO_ONE relationship qualifies
// on whichever side the table occupies, so it may render on both tables.
func foreignKeyLine(table string, rel mdl.Relationship, primaryKeys map[string]string) (string, bool) {
	left, right, _ := conditionColumns(rel.Condition)

	var fkColumn, related string
	switch rel.Join() {
	case mdl.JoinManyToOne:
		if table != rel.Models[0] {
			return "", false
		}
		fkColumn, related = left, rel.Models[1]
	case mdl.JoinOneToMany:
		if table != rel.Models[1] {
			return "", false
		}
		fkColumn, related = right, rel.Models[0]
	case mdl.JoinOneToOne:
		switch table {
		case rel.Models[0]:
			fkColumn, related = left, rel.Models[1]
		case rel.Models[1]:
			fkColumn, related = right, rel.Models[0]
		default:
			return "", false
		}
	default:
		return "", false
	}

	comment := fmt.Sprintf("-- {\"condition\": %s, \"joinType\": %s}\n  ", rel.Condition, rel.JoinType)
	constraint := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", fkColumn, related, primaryKeys[related])
	return comment + constraint, true
}

func convertMetrics(metrics []mdl.Metric) []string {
	commands := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		lines := make([]string, 0, len(metric.Dimensions)+len(metric.Measures))
		for _, dim := range metric.Dimensions {
			lines = append(lines, fmt.Sprintf("-- This column is a dimension\n  %s %s", dim.Name, dim.Type))
		}
		for _, measure := range metric.Measures {
			lines = append(lines, fmt.Sprintf("-- This column is a measure\n  -- expression: %s\n  %s %s",
				measure.Expression, measure.Name, measure.Type))
		}
		comment := fmt.Sprintf("\n/* This table is a metric */\n/* Metric Base Object: %s */\n", metric.BaseObject)
		commands = append(commands, createTable(comment, metric.Name, lines))
	}
	return commands
}

func convertViews(views []mdl.View) []string {
	commands := make([]string, 0, len(views))
	for _, view := range views {
		properties := ""
		if view.Properties != nil {
			properties = encodeProperties(view.Properties)
		}
		commands = append(commands, fmt.Sprintf("/* %s */\nCREATE VIEW %s\nAS (%s)", properties, view.Name, view.Statement))
	}
	return commands
}

func createTable(comment, name string, lines []string) string {
	return fmt.Sprintf("%sCREATE TABLE %s (\n  %s\n);", comment, name, strings.Join(lines, ",\n  "))
}

// resolveRelationships fails the whole conversion when any relationship names
// a model absent from the model set or carries an unparseable condition.
// Silently dropping a constraint would degrade retrieval quality invisibly.
func resolveRelationships(relationships []mdl.Relationship, primaryKeys map[string]string) error {
	for _, rel := range relationships {
		if _, _, ok := conditionColumns(rel.Condition); !ok || len(rel.Models) != 2 {
			return &ResolutionError{Condition: rel.Condition}
		}
		for _, name := range rel.Models {
			if _, ok := primaryKeys[name]; !ok {
				return &ResolutionError{Condition: rel.Condition, Model: name}
			}
		}
	}
	return nil
}

// conditionColumns extracts the column names from a join condition of the
// form "model.column = model.column".
func conditionColumns(condition string) (left, right string, ok bool) {
	sides := strings.Split(condition, " = ")
	if len(sides) != 2 {
		return "", "", false
	}
	l := strings.SplitN(sides[0], ".", 2)
	r := strings.SplitN(sides[1], ".", 2)
	if len(l) != 2 || len(r) != 2 {
		return "", "", false
	}
	return l[1], r[1], true
}

// aliasProperties returns a copy of the properties with the displayName key
// renamed to alias. The input map is never mutated; the rendered output must
// not alias the validated manifest.
func aliasProperties(properties map[string]string) map[string]string {
	out := make(map[string]string, len(properties))
	for k, v := range properties {
		if k == "displayName" {
			continue
		}
		out[k] = v
	}
	out["alias"] = properties["displayName"]
	return out
}

func encodeProperties(properties map[string]string) string {
	// json.Marshal sorts map keys, which keeps re-indexing byte-identical.
	encoded, err := json.Marshal(properties)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
