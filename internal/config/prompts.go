package config

import (
	"bytes"
	"fmt"
	"text/template"

	"stlcpilot/internal/stage"
)

// GetInstruction returns the expanded instruction for stage s.
//
// The instruction template is executed with [PromptData]. Returns an error if
// no instruction is configured for s or the template is invalid.
func (c *Config) GetInstruction(s stage.Stage, projectName string) (string, error) {
	sc, ok := c.Stages[string(s)]
	if !ok || sc.Instruction == "" {
		return "", fmt.Errorf("no instruction configured for stage: %s", s)
	}
	return expandTemplate(sc.Instruction, PromptData{ProjectName: projectName, Stage: s.Label()})
}

// ExpandTemplate executes tmpl with data. Exported for the raw command, which
// lets users reference {{.ProjectName}} in ad-hoc prompts.
func ExpandTemplate(tmpl string, data PromptData) (string, error) {
	return expandTemplate(tmpl, data)
}

func expandTemplate(tmplStr string, data PromptData) (string, error) {
	tmpl, err := template.New("instruction").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
