package generate

import "strings"

const summaryPrompt = `Summarize the key information from this scraped webpage content in a single continuous paragraph of exactly 5-6 sentences. Focus on:

- Company overview and services/products offered
- Contact details, location, and team (if available)
- Any relevant business focus or unique selling points

Keep it professional, concise, and factual. Do NOT use any markdown (like **bold**), bullet points, line breaks, or formatting. Output everything as one unbroken paragraph with only spaces between sentences.

Content: {content}`

const companyPrompt = `Extract the exact company name from this webpage summary. Respond with ONLY the company name (e.g., 'Acme Corporation'), nothing else.

Summary: {summary}`

const descriptionPrompt = `From this webpage summary, create a concise one-sentence description of what the company does or deals with, phrased as 'providing [services] to [industries/clients]'. Respond with ONLY that sentence, nothing else.

Summary: {summary}`

const blurbsPrompt = `Generate 5 short, personalized blurbs (1-2 sentences each) for our organization's services. Explain how EACH of our services can specifically benefit {company_name} based on their focus in this summary: {summary}.

Use the perspective of our organization offering help TO {company_name} (e.g., 'We can optimize your workflows to enhance your digital efficiency').

Keep each professional, concise, and starting with 'We can' or similar. Number them exactly 1-5, one per line, no extras or markdown:

1. Process Optimization & Workflow Analysis
2. Strategic Consulting & Planning
3. Custom Solution Development
4. Training & Knowledge Transfer
5. Quality Assurance & Performance Monitoring`

func fill(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
