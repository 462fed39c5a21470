package openai

import (
	"fmt"
	"strings"

	"github.com/caiomeira/extractd/internal/core/domain"
)

const systemPrompt = "You extract field values from fragments of Brazilian documents. " +
	"Answer with a single JSON object and nothing else."

var labelDescriptions = map[domain.Label]string{
	domain.LabelCarteiraOAB: "an OAB professional identity card",
	domain.LabelTelaSistema: "a screenshot of a loan management system",
}

func buildFieldPrompt(label domain.Label, fields []string, excerpt string) string {
	description, ok := labelDescriptions[label]
	if !ok {
		description = "a document"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The text below comes from %s. Extract these fields:\n", description)
	for _, name := range fields {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Reply with one JSON object whose keys are exactly the field names above.\n")
	b.WriteString("- Use null for any field not present in the text. Never guess.\n")
	b.WriteString("- Copy values as they appear, without surrounding labels.\n")
	b.WriteString("\nText:\n")
	b.WriteString(excerpt)
	return b.String()
}
