package llm

import "strings"

const labelSystemPrompt = "You are given a list of titles that belong to the same semantic cluster. " +
	"Your task is to assign a single, concise title that captures the shared semantic meaning of the titles. " +
	"Strictly return the result as a valid JSON object. " +
	"Do not include explanations, extra text, or code blocks. " +
	"Return only this format:\n\n" +
	`{ "title": "YOUR_ANSWER_HERE" }`

// LabelPrompt builds the conversation asking for one title for a cluster.
func LabelPrompt(titles []string) []Message {
	return []Message{
		{Role: RoleSystem, Content: labelSystemPrompt},
		{Role: RoleUser, Content: "List of titles: " + strings.Join(titles, ",")},
	}
}
