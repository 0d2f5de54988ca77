package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryTemplates_RenderFormatHint(t *testing.T) {
	for _, xml := range []bool{false, true} {
		out, err := ChunkSummaryQuery.Render(SummaryParams{Content: "the chunk", Format: FormatHint(xml)})
		require.NoError(t, err)
		assert.Contains(t, out, "the chunk")
		assert.Contains(t, out, FormatHint(xml))
	}
	assert.Equal(t, "text", FormatHint(false))
}

func TestSQLGen_Render(t *testing.T) {
	out := SQLGen.MustRender(SQLGenParams{Dialect: "SQLite", Table: "Leases", Schema: `"Rent" REAL`, Question: "avg rent?"})
	assert.Contains(t, out, `"Leases"`)
	assert.Contains(t, out, "avg rent?")
}

func TestTemplateName_IsVersioned(t *testing.T) {
	assert.Equal(t, "answer@"+Version, Answer.Name())
}

func TestToolDescriptionPrefix(t *testing.T) {
	assert.Equal(t,
		"Given a single input 'query' parameter, searches for and returns chunks from Leases documents. ",
		ToolDescriptionPrefix("Leases"))
}
