package augment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OllamaAugmenter struct {
	client        *http.Client
	model         string
	endpoint      string
	sampler       Sampler
	promptBuilder *PromptBuilder
}

type ollamaGenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Format string   `json:"format,omitempty"`
	Stream bool     `json:"stream"`
	Images []string `json:"images,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func NewOllamaAugmenter(model, baseURL string, sampler Sampler) *OllamaAugmenter {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = "http://127.0.0.1:11434"
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, "/api/generate") {
		url += "/api/generate"
	}

	if model == "" {
		model = "llama3.1"
	}

	return &OllamaAugmenter{
		client: &http.Client{
			Timeout: 90 * time.Second,
		},
		model:         model,
		endpoint:      url,
		sampler:       sampler,
		promptBuilder: &PromptBuilder{},
	}
}

func (o *OllamaAugmenter) Generate(ctx context.Context, req Request) (*Descriptions, error) {
	inputs, outputs := o.sampler.CollectRequest(req)
	reqBody := ollamaGenerateRequest{
		Model:  o.model,
		Prompt: o.promptBuilder.Build(req, inputs, outputs),
		Format: "json",
	}
	for _, smp := range append(inputs, outputs...) {
		if smp.IsImage() {
			reqBody.Images = append(reqBody.Images, base64.StdEncoding.EncodeToString(smp.Data))
		}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama generate request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	if strings.TrimSpace(parsed.Response) == "" {
		return nil, fmt.Errorf("ollama returned an empty response")
	}
	return ParseResponse(parsed.Response)
}
