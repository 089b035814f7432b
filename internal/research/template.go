package research

import (
	"fmt"
	"os"
	"strings"
)

// builtinTemplate is the fallback research prompt. %[1]s is the topic,
// %[2]s the artifact path the agent must write.
const builtinTemplate = `Research the following topic and write your findings to %[2]s as markdown.

Topic: %[1]s

Structure the file with these sections:

## Summary
Two or three paragraphs covering the essentials.

## Key Findings
Bullet points, most important first.

## Confidence
How certain you are about the findings and why.

## Sources
Where the information came from.

Write the file even if your findings are incomplete.`

// BuildPrompt renders the research prompt for a topic. When templateFile
// names a readable file its contents are used, with {{topic}} and
// {{output}} placeholders substituted; otherwise the built-in template
// applies. A missing or unreadable template file never fails the spawn,
// it just falls back.
func BuildPrompt(topic, outputPath, templateFile string) string {
	if templateFile != "" {
		if raw, err := os.ReadFile(templateFile); err == nil {
			prompt := strings.ReplaceAll(string(raw), "{{topic}}", topic)
			return strings.ReplaceAll(prompt, "{{output}}", outputPath)
		}
	}
	return fmt.Sprintf(builtinTemplate, topic, outputPath)
}
