package digest

import (
	"fmt"
	"strings"
)

func chunkPrompt(chunkText string, index, total int, language string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional timeline analyst processing post section %d of %d.\n", index, total)
	sb.WriteString(`Read the posts in this section and extract the key AI-related information, focusing on:
- new AI products, tools, or usage patterns and what makes them notable;
- topics, trends, or sentiment shifts the community is discussing;
- tips, tutorials, case studies, or insights worth keeping;
- high-value posts that belong in a final top-10 list.

Output requirements:
- at most 6 bullet points, each starting with "- ";
- each bullet written as "topic/product -- takeaway; source: \"key sentence\"";
- the source quote must come verbatim from this section, trimmed with ellipses if needed.
`)
	if language != "" {
		fmt.Fprintf(&sb, "Write your answer in the dominant language of the posts (detected: %s).\n", language)
	}
	sb.WriteString("\nPosts:\n")
	for _, line := range strings.Split(strings.TrimSpace(chunkText), "\n") {
		if line != "" {
			sb.WriteString("- " + line + "\n")
		}
	}
	return sb.String()
}

func intermediatePrompt(summaries []string, stage, group, totalGroups int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are performing stage %d of a layered roll-up for a trend digest (group %d of %d).\n", stage, group, totalGroups)
	sb.WriteString(`Read the summaries below and condense the non-duplicate core facts into 4-6 bullet points:
- each bullet starts with "- " and stays under 120 words;
- name the products or topics involved and state the main insight or figure;
- keep verbatim quotes where present, trimmed with ellipses;
- never invent information that does not appear in the input.

Summaries to merge:
`)
	for i, s := range summaries {
		fmt.Fprintf(&sb, "\nSummary %d:\n%s\n", i+1, s)
	}
	return sb.String()
}

func overallPrompt(summaries []string) string {
	var sb strings.Builder
	sb.WriteString(`You are a professional timeline analyst focused on AI news. Writing rules:
- be concrete; avoid vague umbrella terms unless immediately followed by specifics;
- quote key sentences verbatim, trimmed with ellipses where needed;
- conclusions must be actionable or clearly insightful.

Combine the section summaries below into a trend report for the last hour, strictly following this template:

1. Top trend keywords: 3-5 concrete terms, formatted "keyword (reason / related product)".
2. AI products mentioned: 3-5 entries, formatted "product | estimated mentions | highlight".
3. Tips / tutorials / case studies: 3-5 entries, formatted "who | method | value (quoting key points)".
4. Top 10 most valuable posts:
   1. Title: topic or product
      Quote: "verbatim key sentence"
      Key information: the claim, method, or figure
      Why it matters: where to apply it or what to do
   2. ...
   ...
   10. ...

Requirements:
- if there is not enough material, consolidate what exists; never fabricate;
- list fewer than 10 posts when necessary and say why at the end;
- plain text only, no markdown, this goes into an email body.

Section summaries:
`)
	for i, s := range summaries {
		fmt.Fprintf(&sb, "\nSection %d summary:\n%s\n", i+1, s)
	}
	return sb.String()
}
