package schema

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// TableDDL renders everything needed to create one table: the table itself,
// its indexes, its comment, row level security and its access policy.
func TableDDL(t Table) string {
	return joinSections(
		createTable(t),
		createIndexes(t),
		"-- Table comment\n"+commentOn(t),
		"-- Row level security\n"+enableRLS(t),
		createPolicy(t),
	)
}

// TriggerDDL renders the updated_at function and the triggers that call it.
func TriggerDDL(d Definition) string {
	sections := []string{createFunction(d.UpdatedAtFunction)}
	for _, tr := range d.Triggers {
		sections = append(sections, createTrigger(d, tr))
	}
	return joinSections(sections...)
}

// Render renders the consolidated document: tables and indexes first, then
// the trigger function and triggers, comments, row level security and
// finally the policies. The output only depends on d.
func Render(d Definition) string {
	var sections []string
	for _, t := range d.Tables {
		sections = append(sections, createTable(t), createIndexes(t))
	}
	sections = append(sections, TriggerDDL(d))

	comments := []string{"-- Table comments"}
	rls := []string{"-- Row level security"}
	for _, t := range d.Tables {
		comments = append(comments, commentOn(t))
		rls = append(rls, enableRLS(t))
	}
	sections = append(sections, strings.Join(comments, "\n"), strings.Join(rls, "\n"))

	for _, t := range d.Tables {
		sections = append(sections, createPolicy(t))
	}
	return joinSections(sections...)
}

func joinSections(sections ...string) string {
	return strings.Join(sections, "\n\n") + "\n"
}

func createTable(t Table) string {
	var b strings.Builder
	if t.Header != "" {
		fmt.Fprintf(&b, "-- %s\n", t.Header)
	}
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.QualifiedName())
	for i, c := range t.Columns {
		b.WriteString("  ")
		b.WriteString(columnDef(c))
		if i < len(t.Columns)-1 {
			b.WriteString(",")
		}
		if c.Comment != "" {
			b.WriteString(" -- ")
			b.WriteString(c.Comment)
		}
		b.WriteString("\n")
	}
	b.WriteString(");")
	return b.String()
}

func columnDef(c Column) string {
	parts := []string{c.Name, c.Type}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.Default != "" {
		parts = append(parts, "DEFAULT "+c.Default)
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if ref := c.References; ref != nil {
		parts = append(parts, fmt.Sprintf("REFERENCES %s.%s(%s)", ref.Schema, ref.Table, ref.Column))
		if ref.OnDelete != "" {
			parts = append(parts, "ON DELETE "+ref.OnDelete)
		}
	}
	return strings.Join(parts, " ")
}

func createIndexes(t Table) string {
	lines := []string{fmt.Sprintf("-- Indexes on %s", t.Name)}
	for _, idx := range t.Indexes {
		lines = append(lines, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s);",
			idx.Name, t.QualifiedName(), strings.Join(idx.Columns, ", ")))
	}
	return strings.Join(lines, "\n")
}

func commentOn(t Table) string {
	return fmt.Sprintf("COMMENT ON TABLE %s IS %s;", t.QualifiedName(), pq.QuoteLiteral(t.Comment))
}

func enableRLS(t Table) string {
	return fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY;", t.QualifiedName())
}

func createPolicy(t Table) string {
	p := t.Policy
	var b strings.Builder
	if p.Comment != "" {
		fmt.Fprintf(&b, "-- Policy on %s: %s\n", t.Name, p.Comment)
	}
	fmt.Fprintf(&b, "DROP POLICY IF EXISTS %s ON %s;\n", p.Name, t.QualifiedName())
	fmt.Fprintf(&b, "CREATE POLICY %s ON %s\n", p.Name, t.QualifiedName())
	fmt.Fprintf(&b, "  FOR %s\n", p.Command)
	fmt.Fprintf(&b, "  USING (%s);", p.Using)
	return b.String()
}

func createFunction(name string) string {
	return fmt.Sprintf(`-- Set updated_at to the current time on every update
CREATE OR REPLACE FUNCTION %s()
RETURNS TRIGGER AS $$
BEGIN
  NEW.updated_at = now();
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;`, name)
}

func createTrigger(d Definition, tr Trigger) string {
	target := DefaultSchema + "." + tr.Table
	if t, ok := d.Table(tr.Table); ok {
		target = t.QualifiedName()
	}
	var b strings.Builder
	if tr.Comment != "" {
		fmt.Fprintf(&b, "-- %s\n", tr.Comment)
	}
	fmt.Fprintf(&b, "DROP TRIGGER IF EXISTS %s ON %s;\n", tr.Name, target)
	fmt.Fprintf(&b, "CREATE TRIGGER %s\n", tr.Name)
	fmt.Fprintf(&b, "BEFORE UPDATE ON %s\n", target)
	b.WriteString("FOR EACH ROW\n")
	fmt.Fprintf(&b, "EXECUTE FUNCTION %s();", tr.Function)
	return b.String()
}
