package augment

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrUnparsableResponse = errors.New("augmenter response is not valid JSON")

// PromptBuilder constructs the description prompt.
type PromptBuilder struct{}

const securityInstruction = "- Redact any API keys, passwords, secrets, or tokens found in the code as [REDACTED]\n"

// Build renders the prompt for req using already collected samples.
func (pb *PromptBuilder) Build(req Request, inputs, outputs []Sample) string {
	lang := req.Language
	if lang == "" {
		lang = "text"
	}

	var sb strings.Builder
	sb.WriteString("ROLE: Research data management expert specializing in FAIR metadata\n\n")
	sb.WriteString("TASK: Generate concise, technical descriptions for a computational workflow\n\n")
	sb.WriteString("INPUT FORMAT:\n")
	sb.WriteString("- Software code that was executed\n")
	sb.WriteString("- Input datasets with samples (first rows)\n")
	sb.WriteString("- Output datasets with samples (first rows)\n\n")
	sb.WriteString("OUTPUT FORMAT: JSON object with these keys:\n")
	sb.WriteString(`{
  "software_description": "What this code does technically",
  "computation_description": "What this computation accomplishes",
  "input_datasets": {
    "filename": "Description of this input's role and content"
  },
  "output_datasets": {
    "filename": "Description of this output's content and meaning"
  }
}`)
	sb.WriteString("\n\nREQUIREMENTS:\n")
	sb.WriteString("- Software description: 1-2 sentences, focus on operations performed\n")
	sb.WriteString("- Computation description: 1-2 sentences, focus on scientific/analytical goal\n")
	sb.WriteString("- Dataset descriptions: 1 sentence each, describe content type and role in workflow\n")
	sb.WriteString("- Be technical but clear, assume scientific audience\n")
	sb.WriteString("- No markdown formatting, just plain JSON\n")
	sb.WriteString(securityInstruction)

	fmt.Fprintf(&sb, "\nSOFTWARE CODE:\n```%s\n%s\n```\n", lang, req.Code)
	if len(req.Outline) > 0 {
		sb.WriteString("\nCODE OUTLINE:\n")
		for _, line := range req.Outline {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
	}
	fmt.Fprintf(&sb, "\nINPUT DATASETS:\n%s\n", formatSamples(inputs))
	fmt.Fprintf(&sb, "\nOUTPUT DATASETS:\n%s\n", formatSamples(outputs))
	sb.WriteString("\nGenerate the JSON now:")
	return sb.String()
}

var (
	jsonFence = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	bareFence = regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```")
	jsonSpan  = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParseResponse extracts the descriptions object from model output that may
// wrap it in a ```json fence, a bare fence, or surrounding prose.
func ParseResponse(text string) (*Descriptions, error) {
	text = strings.TrimSpace(text)
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	} else if m := bareFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	} else if !(strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}")) {
		if span := jsonSpan.FindString(text); span != "" {
			text = span
		}
	}

	var d Descriptions
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}
	if d.Inputs == nil {
		d.Inputs = map[string]string{}
	}
	if d.Outputs == nil {
		d.Outputs = map[string]string{}
	}
	return &d, nil
}
