package llm

import (
	"fmt"
	"strings"

	"ArticlesClassifier/internal/domain"
)

const defaultSystemPrompt = "You are a business analyst specializing in supply chain management, " +
	"operations management and strategic analysis. Your task is to analyze news articles and " +
	"assess their potential impact on the company described in the context."

const defaultUserPromptTemplate = `COMPANY CONTEXT:
{{company_context}}

==================================================

NEWS ARTICLE TO ANALYZE:
Title: {{title}}
Summary: {{summary}}

==================================================

TASK:
Based on the detailed company context above, classify this news article and explain its potential impact on the company.

Consider (but do not limit yourself to) these aspects when analyzing:
- Supply chain implications (suppliers, logistics, shipping routes, disruptions)
- Market dynamics (demand trends, competition, regional markets)
- Strategic considerations (sponsorships, brand positioning, expansion plans)
- Operational impacts (production planning, forecasting, efficiency)
- Financial implications (costs, revenues, investments)
- Regulatory and sustainability factors

Classification Options:
- Threat: could negatively impact the company's business, supply chain, reputation, or operations
- Opportunity: could benefit the company or presents a strategic opportunity
- Neutral: no significant direct impact on the company

Respond with a JSON object:
{"classification": "Threat|Opportunity|Neutral", "explanation": "2-3 sentences referencing the company context", "advice": "one concrete recommended action"}`

// systemPrompt resolves the system message: per-tenant override first, then
// the configured default, then the built-in fallback.
func systemPrompt(configured string, org domain.Organization) string {
	if prompt := strings.TrimSpace(org.SystemPrompt); prompt != "" {
		return prompt
	}
	if prompt := strings.TrimSpace(configured); prompt != "" {
		return prompt
	}
	return defaultSystemPrompt
}

// userPrompt renders the user message from the organization's template (or
// the default) with the article fields substituted. Placeholders:
// {{company_context}}, {{title}}, {{summary}}.
func userPrompt(org domain.Organization, article domain.Article) string {
	template := org.UserPromptTemplate
	if strings.TrimSpace(template) == "" {
		template = defaultUserPromptTemplate
	}

	replacer := strings.NewReplacer(
		"{{company_context}}", org.CompanyContext,
		"{{title}}", article.Title,
		"{{summary}}", article.Summary,
	)

	rendered := replacer.Replace(template)
	if !strings.Contains(template, "{{title}}") {
		// A custom template without placeholders still needs the article.
		rendered = fmt.Sprintf("%s\n\nTitle: %s\nSummary: %s", rendered, article.Title, article.Summary)
	}
	return rendered
}
