package agent

import (
	"bytes"
	"text/template"
)

var promptTemplate = template.Must(template.New("fix").Parse(`You are a debugging expert. A test is failing. Fix the code.

## Failed Test
Name: {{.TestID}}
File: {{.TargetFile}}

## Test Source
` + "```" + `
{{.TargetContent}}
` + "```" + `

## Test Output
` + "```" + `
{{.FailureOutput}}
` + "```" + `

## Instructions
1. Analyze why the test is failing
2. Provide the COMPLETE fixed file content
3. Respond in this exact JSON format:

` + "```json" + `
{
  "file": "{{.TargetFile}}",
  "content": "COMPLETE FILE CONTENT HERE",
  "explanation": "Brief explanation of the fix"
}
` + "```" + `

Return ONLY the JSON, no other text.`))

// BuildPrompt renders the fix prompt for a request.
func BuildPrompt(req Request) (string, error) {
	var b bytes.Buffer
	if err := promptTemplate.Execute(&b, req); err != nil {
		return "", err
	}
	return b.String(), nil
}
