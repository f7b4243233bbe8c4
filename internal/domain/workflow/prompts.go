package workflow

import (
	"fmt"
	"strings"
)

const expansionPrompt = `You are a research query generator. Generate 3-5 diverse search queries from the user's question.

Query types:
1. Broad overview query
2. Specific technical query
3. Recent developments query
4-5. Additional complementary queries (if needed)

Return ONLY valid JSON:
{
  "queries": ["query1", "query2", "query3", ...]
}

User query: %s
`

const synthesisSystemPrompt = `You are a research synthesizer. Create comprehensive research reports from retrieved sources.

Requirements:
- Cite every claim with [Source N] format
- Target length: 1200-1500 words
- Structure: Overview → Key Findings → Analysis → Conclusion
- Use clear, academic tone
- Synthesize information, don't just summarize
`

const synthesisUserPrompt = `Topic: %s

Sources:
%s

Instructions:
1. Write a comprehensive research report on the topic
2. Use all provided sources to inform your analysis
3. Cite every factual claim with [Source N] where N matches the source number
4. Follow this structure:
   - Overview (150-200 words): Context and scope
   - Key Findings (400-500 words): Main discoveries with citations
   - Analysis (400-500 words): Interpretation and implications
   - Conclusion (150-200 words): Summary and future directions
5. Word count: 1200-1500 words
6. Ensure all citations are accurate and correspond to source numbers
`

const validationPrompt = `You are a research report validator. Analyze the report and verify quality.

Tasks:
1. Check all [Source N] citations are valid (N matches source numbers)
2. Identify claims without citations
3. Identify statements that contradict the sources or each other
4. Calculate confidence score (0.0-1.0) based on:
   - Citation coverage (40%%): All claims cited?
   - Citation accuracy (30%%): Citations match sources?
   - Source quality (20%%): Diverse, relevant sources?
   - Report structure (10%%): Follows required format?

Return ONLY valid JSON:
{
  "valid": true/false,
  "confidence": 0.0-1.0,
  "citation_coverage": 0.0-1.0,
  "unsupported_claims": ["claim1", "claim2", ...],
  "contradictions": ["statement1", "statement2", ...]
}

Report:
%s

Sources (for reference):
%s
`

func formatExpansionPrompt(userQuery string) string {
	return fmt.Sprintf(expansionPrompt, userQuery)
}

func formatSynthesisPrompt(topic string, passages []Passage) string {
	return fmt.Sprintf(synthesisUserPrompt, topic, formatSourceList(passages))
}

func formatValidationPrompt(report string, passages []Passage) string {
	return fmt.Sprintf(validationPrompt, report, formatSourceList(passages))
}

// formatSourceList renders passages as the numbered list both synthesis and
// validation prompts reference with [Source N] markers.
func formatSourceList(passages []Passage) string {
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source %d]\n", i+1)
		if p.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", p.Title)
		}
		b.WriteString(p.FullText)
	}
	return b.String()
}
