package agent

import (
	"fmt"
	"strings"

	"datachat/database"
)

// buildSystemInstructions assembles the run's system prompt: what the
// dataset looks like, how original headers map to stored column names, and
// how the tools are meant to be used.
func buildSystemInstructions(ds *database.Dataset, cols []database.Column) string {
	var sb strings.Builder

	sb.WriteString("You are a data analysis agent. Answer the user's question about their uploaded dataset using the available tools.\n\n")

	sb.WriteString(fmt.Sprintf("Dataset: %s (id: %s, table: %s, %d rows, %d columns)\n\n",
		ds.Name(), ds.ID, ds.TableName, ds.RowCount, ds.ColumnCount))

	sb.WriteString("Columns:\n")
	for _, col := range cols {
		sb.WriteString(fmt.Sprintf("  %s (%s)\n", col.Name, col.Type))
	}

	sb.WriteString("\nOriginal header -> stored column name:\n")
	for _, original := range ds.Columns {
		if normalized, ok := ds.ColumnMapping[original]; ok && normalized != original {
			sb.WriteString(fmt.Sprintf("  %q -> %s\n", original, normalized))
		}
	}

	sb.WriteString(fmt.Sprintf(`
Guidelines:
1. Call plan before anything else, then follow the plan.
2. Use get_schema and sample_rows before writing queries.
3. Queries are read-only SELECT statements against table %s only; use the stored column names, never the original headers.
4. Use reflect to check intermediate results and summarize before the final answer.
5. When a tool result suggests replanning, call plan again with a new rationale.
6. Give the final answer as plain prose with concrete numbers; format tabular results as Markdown tables.
`, ds.TableName))

	return sb.String()
}

// historyContext folds prior turns into one context block so the model
// sees recent conversation without replaying every message.
func historyContext(turns []database.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(fmt.Sprintf("User: %s\nAssistant: %s\n", t.UserText, t.AgentText))
	}
	return sb.String()
}
