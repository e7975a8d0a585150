package augment

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiAugmenter implements Augmenter using Gemini text generation. Image
// samples are attached as inline data.
type GeminiAugmenter struct {
	client        *genai.Client
	model         string
	sampler       Sampler
	promptBuilder *PromptBuilder
}

func NewGeminiAugmenter(ctx context.Context, apiKey, modelName string, sampler Sampler) (*GeminiAugmenter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiAugmenter{
		client:        client,
		model:         modelName,
		sampler:       sampler,
		promptBuilder: &PromptBuilder{},
	}, nil
}

func (g *GeminiAugmenter) Generate(ctx context.Context, req Request) (*Descriptions, error) {
	inputs, outputs := g.sampler.CollectRequest(req)

	parts := []*genai.Part{genai.NewPartFromText(g.promptBuilder.Build(req, inputs, outputs))}
	for _, smp := range append(inputs, outputs...) {
		if smp.IsImage() {
			parts = append(parts,
				genai.NewPartFromText("Image file: "+smp.Name),
				genai.NewPartFromBytes(smp.Data, smp.MIME))
		}
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.2),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini returned an empty response")
	}
	return ParseResponse(text)
}
