package agents

import (
	"fmt"
	"strings"
)

func classifyPrompt(query string) string {
	return fmt.Sprintf(`Classify the user query into ONE of the following categories:

1. direct_answer - the question is simple and can be answered without external search.
2. web_research - the question needs recent or external information.
3. memory_retrieval - the question is likely answerable from stored knowledge.
4. hybrid - both stored knowledge and web search may be useful.

Return only the category name. No explanations.

Query: %q`, query)
}

func validatePrompt(evidence []string) string {
	return fmt.Sprintf(`Validate the following information and return only 3-5 concise verified facts.
Rules:
- No explanations
- No repetition
- Each point must be one sentence
- Output as bullet points

Information:
%s`, strings.Join(evidence, "\n"))
}

func summaryPrompt(query string, facts []string) string {
	listed := "(none)"
	if len(facts) > 0 {
		listed = strings.Join(facts, "\n")
	}
	return fmt.Sprintf(`Create a clear and short answer to the question using the validated facts below.
Keep it under 5 bullet points.

Question: %s

Validated facts:
%s`, query, listed)
}
