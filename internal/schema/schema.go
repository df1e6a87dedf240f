// Package schema describes the AI search helper tables and renders them as SQL.
package schema

import (
	"fmt"

	"github.com/TheIdeem/supabase-mcp-server/internal/models"
)

const DefaultSchema = "public"

type Reference struct {
	Schema   string
	Table    string
	Column   string
	OnDelete string
}

type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
	Default    string
	References *Reference
	Comment    string
}

type Index struct {
	Name    string
	Columns []string
}

// Policy is a row-level-security policy. Command is the SQL command it
// applies to (ALL, SELECT, ...), Using its boolean expression.
type Policy struct {
	Name    string
	Command string
	Using   string
	Comment string
}

type Table struct {
	Schema  string
	Name    string
	Comment string
	// Header is the SQL comment placed above the CREATE TABLE statement.
	Header  string
	Columns []Column
	Indexes []Index
	Policy  Policy
}

// QualifiedName returns schema.name.
func (t Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

func (t Table) column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

type Trigger struct {
	Name     string
	Table    string
	Function string
	Comment  string
}

// Definition is the complete set of objects the tool emits.
type Definition struct {
	Tables []Table
	// UpdatedAtFunction names the plpgsql function that stamps updated_at.
	UpdatedAtFunction string
	Triggers          []Trigger
}

// Table returns the table with the given unqualified name.
func (d Definition) Table(name string) (Table, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Validate checks that the definition is internally consistent.
func (d Definition) Validate() error {
	if len(d.Tables) == 0 {
		return fmt.Errorf("definition has no tables")
	}
	seen := make(map[string]bool, len(d.Tables))
	for _, t := range d.Tables {
		if t.Name == "" || t.Schema == "" {
			return fmt.Errorf("table %q: schema and name are required", t.QualifiedName())
		}
		if seen[t.Name] {
			return fmt.Errorf("table %s declared twice", t.Name)
		}
		seen[t.Name] = true
		if len(t.Columns) == 0 {
			return fmt.Errorf("table %s has no columns", t.Name)
		}
		for _, idx := range t.Indexes {
			if idx.Name == "" || len(idx.Columns) == 0 {
				return fmt.Errorf("table %s: index needs a name and columns", t.Name)
			}
			for _, col := range idx.Columns {
				if _, ok := t.column(col); !ok {
					return fmt.Errorf("index %s references unknown column %s.%s", idx.Name, t.Name, col)
				}
			}
		}
		if t.Policy.Name == "" || t.Policy.Using == "" {
			return fmt.Errorf("table %s has no access policy", t.Name)
		}
	}
	for _, t := range d.Tables {
		for _, c := range t.Columns {
			ref := c.References
			if ref == nil {
				continue
			}
			if ref.Schema == "" || ref.Table == "" || ref.Column == "" {
				return fmt.Errorf("column %s.%s: incomplete reference", t.Name, c.Name)
			}
			// users and extractions live outside the definition
			if target, ok := d.Table(ref.Table); ok {
				if _, ok := target.column(ref.Column); !ok {
					return fmt.Errorf("column %s.%s references unknown column %s.%s", t.Name, c.Name, ref.Table, ref.Column)
				}
			}
		}
	}
	for _, tr := range d.Triggers {
		tbl, ok := d.Table(tr.Table)
		if !ok {
			return fmt.Errorf("trigger %s targets unknown table %s", tr.Name, tr.Table)
		}
		if tr.Function != d.UpdatedAtFunction {
			return fmt.Errorf("trigger %s calls unknown function %s", tr.Name, tr.Function)
		}
		if _, ok := tbl.column("updated_at"); !ok {
			return fmt.Errorf("trigger %s: table %s has no updated_at column", tr.Name, tr.Table)
		}
	}
	return nil
}

// ownerPolicy restricts every command on a table to rows owned by the caller.
func ownerPolicy(table, comment string) Policy {
	return Policy{
		Name:    table + "_user_policy",
		Command: "ALL",
		Using:   "auth.uid()::text = user_id::text",
		Comment: comment,
	}
}

func userIDColumn() Column {
	return Column{
		Name:    "user_id",
		Type:    "UUID",
		NotNull: true,
		References: &Reference{
			Schema: DefaultSchema, Table: "users", Column: "id", OnDelete: "CASCADE",
		},
	}
}

func idColumn() Column {
	return Column{Name: "id", Type: "UUID", PrimaryKey: true, Default: "uuid_generate_v4()"}
}

func timestampColumn(name string) Column {
	return Column{Name: name, Type: "TIMESTAMP WITH TIME ZONE", Default: "now()", NotNull: true}
}

// AISuggestions returns the ai_suggestions table.
func AISuggestions() Table {
	name := models.AISuggestion{}.TableName()
	return Table{
		Schema:  DefaultSchema,
		Name:    name,
		Header:  "Suggestions generated by the AI helper",
		Comment: "AI-generated suggestions that help users configure their searches",
		Columns: []Column{
			idColumn(),
			userIDColumn(),
			timestampColumn("created_at"),
			timestampColumn("updated_at"),
			{Name: "user_info", Type: "JSONB", NotNull: true, Comment: "Answers the user gave in the questionnaire"},
			{Name: "suggestions", Type: "JSONB", NotNull: true, Comment: "Suggestions produced by the AI"},
			{Name: "is_applied", Type: "BOOLEAN", Default: "false", NotNull: true, Comment: "Whether the user applied a suggestion"},
			{Name: "applied_suggestion_index", Type: "INTEGER", Comment: "Index of the applied suggestion, if any"},
			{Name: "applied_at", Type: "TIMESTAMP WITH TIME ZONE", Comment: "When the suggestion was applied"},
		},
		Indexes: []Index{
			{Name: name + "_user_id_idx", Columns: []string{"user_id"}},
			{Name: name + "_created_at_idx", Columns: []string{"created_at"}},
		},
		Policy: ownerPolicy(name, "users can only see their own suggestions"),
	}
}

// UserSearches returns the user_searches table.
func UserSearches() Table {
	name := models.UserSearch{}.TableName()
	return Table{
		Schema:  DefaultSchema,
		Name:    name,
		Header:  "Search history of each user",
		Comment: "History of the searches run by users",
		Columns: []Column{
			idColumn(),
			userIDColumn(),
			timestampColumn("created_at"),
			{Name: "query", Type: "JSONB", NotNull: true, Comment: "Search configuration (keywords, filters, ...)"},
			{
				Name: "extraction_id", Type: "UUID", Comment: "Related extraction, if any",
				References: &Reference{Schema: DefaultSchema, Table: "extractions", Column: "id"},
			},
			{
				Name: "ai_suggestion_id", Type: "UUID", Comment: "Related AI suggestion, if any",
				References: &Reference{Schema: DefaultSchema, Table: models.AISuggestion{}.TableName(), Column: "id"},
			},
			{Name: "results_count", Type: "INTEGER", Comment: "Number of results returned"},
			{Name: "is_successful", Type: "BOOLEAN", Default: "true", NotNull: true, Comment: "Whether the search succeeded"},
		},
		Indexes: []Index{
			{Name: name + "_user_id_idx", Columns: []string{"user_id"}},
			{Name: name + "_created_at_idx", Columns: []string{"created_at"}},
			{Name: name + "_extraction_id_idx", Columns: []string{"extraction_id"}},
			{Name: name + "_ai_suggestion_id_idx", Columns: []string{"ai_suggestion_id"}},
		},
		Policy: ownerPolicy(name, "users can only see their own searches"),
	}
}

// Default returns the full AI search helper schema.
func Default() Definition {
	suggestions := AISuggestions()
	return Definition{
		Tables:            []Table{suggestions, UserSearches()},
		UpdatedAtFunction: "update_updated_at_column",
		Triggers: []Trigger{{
			Name:     "update_" + suggestions.Name + "_updated_at",
			Table:    suggestions.Name,
			Function: "update_updated_at_column",
			Comment:  "Keep updated_at current on every update of " + suggestions.Name,
		}},
	}
}
