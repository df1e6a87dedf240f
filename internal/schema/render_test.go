package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderStatementCounts(t *testing.T) {
	sql := Render(Default())

	assert.Equal(t, 1, strings.Count(sql, "CREATE TABLE IF NOT EXISTS public.ai_suggestions ("))
	assert.Equal(t, 1, strings.Count(sql, "CREATE TABLE IF NOT EXISTS public.user_searches ("))
	assert.Equal(t, 2, strings.Count(sql, "CREATE TABLE IF NOT EXISTS"))
	assert.Equal(t, 6, strings.Count(sql, "CREATE INDEX IF NOT EXISTS"))
	assert.Equal(t, 1, strings.Count(sql, "CREATE OR REPLACE FUNCTION"))
	assert.Equal(t, 1, strings.Count(sql, "CREATE TRIGGER"))
	assert.Equal(t, 2, strings.Count(sql, "COMMENT ON TABLE"))
	assert.Equal(t, 2, strings.Count(sql, "ENABLE ROW LEVEL SECURITY"))
	assert.Equal(t, 2, strings.Count(sql, "CREATE POLICY"))
	assert.Equal(t, 2, strings.Count(sql, "USING (auth.uid()::text = user_id::text);"))
}

func TestRenderIsDeterministic(t *testing.T) {
	assert.Equal(t, Render(Default()), Render(Default()))
}

func TestRenderOrder(t *testing.T) {
	sql := Render(Default())

	order := []string{
		"CREATE TABLE IF NOT EXISTS public.ai_suggestions",
		"CREATE INDEX IF NOT EXISTS ai_suggestions_created_at_idx",
		"CREATE TABLE IF NOT EXISTS public.user_searches",
		"CREATE INDEX IF NOT EXISTS user_searches_ai_suggestion_id_idx",
		"CREATE OR REPLACE FUNCTION update_updated_at_column()",
		"CREATE TRIGGER update_ai_suggestions_updated_at",
		"COMMENT ON TABLE public.ai_suggestions",
		"COMMENT ON TABLE public.user_searches",
		"ALTER TABLE public.ai_suggestions ENABLE ROW LEVEL SECURITY;",
		"ALTER TABLE public.user_searches ENABLE ROW LEVEL SECURITY;",
		"CREATE POLICY ai_suggestions_user_policy",
		"CREATE POLICY user_searches_user_policy",
	}
	last := -1
	for _, stmt := range order {
		pos := strings.Index(sql, stmt)
		if assert.NotEqual(t, -1, pos, stmt) {
			assert.Greater(t, pos, last, stmt)
			last = pos
		}
	}
	assert.True(t, strings.HasSuffix(sql, ";\n"))
}

func TestTableDDL(t *testing.T) {
	ddl := TableDDL(AISuggestions())

	for _, line := range []string{
		"CREATE TABLE IF NOT EXISTS public.ai_suggestions (",
		"  id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),",
		"  user_id UUID NOT NULL REFERENCES public.users(id) ON DELETE CASCADE,",
		"  created_at TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL,",
		"  is_applied BOOLEAN DEFAULT false NOT NULL, -- Whether the user applied a suggestion",
		"  applied_at TIMESTAMP WITH TIME ZONE -- When the suggestion was applied",
		");",
		"CREATE INDEX IF NOT EXISTS ai_suggestions_user_id_idx ON public.ai_suggestions(user_id);",
		"COMMENT ON TABLE public.ai_suggestions IS 'AI-generated suggestions that help users configure their searches';",
		"ALTER TABLE public.ai_suggestions ENABLE ROW LEVEL SECURITY;",
		"DROP POLICY IF EXISTS ai_suggestions_user_policy ON public.ai_suggestions;",
		"CREATE POLICY ai_suggestions_user_policy ON public.ai_suggestions",
		"  FOR ALL",
		"  USING (auth.uid()::text = user_id::text);",
	} {
		assert.Contains(t, ddl, line+"\n")
	}
	assert.NotContains(t, ddl, "user_searches")
	assert.NotContains(t, ddl, "CREATE TRIGGER")
}

func TestTableDDLUserSearches(t *testing.T) {
	ddl := TableDDL(UserSearches())

	assert.Contains(t, ddl, "  extraction_id UUID REFERENCES public.extractions(id), -- Related extraction, if any\n")
	assert.Contains(t, ddl, "  ai_suggestion_id UUID REFERENCES public.ai_suggestions(id), -- Related AI suggestion, if any\n")
	assert.Contains(t, ddl, "  is_successful BOOLEAN DEFAULT true NOT NULL -- Whether the search succeeded\n")
	assert.Equal(t, 4, strings.Count(ddl, "CREATE INDEX IF NOT EXISTS"))
}

func TestTriggerDDL(t *testing.T) {
	ddl := TriggerDDL(Default())

	assert.Contains(t, ddl, "CREATE OR REPLACE FUNCTION update_updated_at_column()\nRETURNS TRIGGER AS $$\n")
	assert.Contains(t, ddl, "  NEW.updated_at = now();\n")
	assert.Contains(t, ddl, "DROP TRIGGER IF EXISTS update_ai_suggestions_updated_at ON public.ai_suggestions;\n")
	assert.Contains(t, ddl, "BEFORE UPDATE ON public.ai_suggestions\nFOR EACH ROW\nEXECUTE FUNCTION update_updated_at_column();\n")
}

func TestCommentQuoting(t *testing.T) {
	tbl := AISuggestions()
	tbl.Comment = "the user's suggestions"

	assert.Equal(t, "COMMENT ON TABLE public.ai_suggestions IS 'the user''s suggestions';", commentOn(tbl))
}
