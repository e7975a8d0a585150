package augment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	want := `{"software_description":"s","computation_description":"c","input_datasets":{"a.csv":"in"},"output_datasets":{"b.csv":"out"}}`
	cases := map[string]string{
		"plain":       want,
		"json fence":  "Here you go:\n```json\n" + want + "\n```\nThanks",
		"bare fence":  "```\n" + want + "\n```",
		"with prose":  "Sure! " + want + " Hope that helps.",
		"padded json": "\n\n  " + want + "  \n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := ParseResponse(text)
			require.NoError(t, err)
			assert.Equal(t, "s", d.Software)
			assert.Equal(t, "c", d.Computation)
			assert.Equal(t, "in", d.Inputs["a.csv"])
			assert.Equal(t, "out", d.Outputs["b.csv"])
		})
	}

	_, err := ParseResponse("no json here")
	assert.ErrorIs(t, err, ErrUnparsableResponse)

	d, err := ParseResponse(`{"software_description":"only"}`)
	require.NoError(t, err)
	assert.NotNil(t, d.Inputs)
	assert.NotNil(t, d.Outputs)
}

func TestSampler_Collect(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "data.csv")
	var rows []string
	rows = append(rows, "id,value")
	for i := 0; i < 20; i++ {
		rows = append(rows, "1,2")
	}
	require.NoError(t, os.WriteFile(csvPath, []byte(strings.Join(rows, "\n")), 0o644))
	for _, name := range []string{"a.png", "b.png", "c.jpg", "d.gif"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{0x89, 'P', 'N', 'G'}, 0o644))
	}

	files := map[string]string{"data.csv": csvPath}
	for _, name := range []string{"a.png", "b.png", "c.jpg", "d.gif"} {
		files[name] = filepath.Join(dir, name)
	}
	samples := DefaultSampler().Collect(files)

	images := 0
	for _, s := range samples {
		if s.IsImage() {
			images++
		}
		if s.Name == "data.csv" {
			assert.Len(t, strings.Split(s.Text, "\n"), 1+DefaultMaxSampleRows)
		}
	}
	assert.Equal(t, DefaultMaxImages, images)
	assert.Len(t, samples, 4)
}

func TestSampler_CollectRequestSharesImageBudget(t *testing.T) {
	dir := t.TempDir()
	in := map[string]string{}
	out := map[string]string{}
	for _, name := range []string{"in1.png", "in2.png"} {
		in[name] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(in[name], []byte{0x89, 'P', 'N', 'G'}, 0o644))
	}
	for _, name := range []string{"out1.png", "out2.png"} {
		out[name] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(out[name], []byte{0x89, 'P', 'N', 'G'}, 0o644))
	}

	sampler := DefaultSampler()
	sampler.MaxImages = 3
	inputs, outputs := sampler.CollectRequest(Request{InputFiles: in, OutputFiles: out})

	images := 0
	for _, s := range append(inputs, outputs...) {
		if s.IsImage() {
			images++
		}
	}
	assert.Equal(t, 3, images)
	assert.Len(t, inputs, 2)
	assert.Len(t, outputs, 1)
}

func TestPromptBuilder_Build(t *testing.T) {
	req := Request{Code: "print(1)", Language: "python", Outline: []string{"function def main() (line 1)"}}
	prompt := (&PromptBuilder{}).Build(req, nil, []Sample{{Name: "out.csv", Text: "a,b"}})
	assert.Contains(t, prompt, "```python\nprint(1)\n```")
	assert.Contains(t, prompt, "- function def main() (line 1)")
	assert.Contains(t, prompt, "INPUT DATASETS:\nNone")
	assert.Contains(t, prompt, "File: out.csv\na,b")
}

func TestOpenAIAugmenter_Generate(t *testing.T) {
	var got openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		content := "```json\n{\"software_description\":\"cleans\",\"computation_description\":\"run\"}\n```"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	defer srv.Close()

	a := NewOpenAIAugmenter("key", "m", srv.URL, DefaultSampler())
	d, err := a.Generate(context.Background(), Request{Code: "x"})
	require.NoError(t, err)
	assert.Equal(t, "cleans", d.Software)
	assert.Equal(t, "m", got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAIAugmenter_HTTPErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	a := NewOpenAIAugmenter("key", "m", srv.URL+"/v1", DefaultSampler())
	_, err := a.Generate(context.Background(), Request{Code: "x"})
	assert.ErrorContains(t, err, "413")
}

func TestOllamaAugmenter_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "json", req.Format)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"response": `{"software_description":"s","computation_description":"c","output_datasets":{"o.csv":"result"}}`,
		})
	}))
	defer srv.Close()

	a := NewOllamaAugmenter("", srv.URL, DefaultSampler())
	d, err := a.Generate(context.Background(), Request{Code: "x"})
	require.NoError(t, err)
	assert.Equal(t, "result", d.Outputs["o.csv"])
}

func TestNew_DegradesWithoutCredentials(t *testing.T) {
	ctx := context.Background()

	a, degraded, err := New(ctx, Options{Provider: "gemini"})
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.IsType(t, &Fallback{}, a)

	a, degraded, err = New(ctx, Options{Provider: "openai"})
	require.NoError(t, err)
	assert.True(t, degraded)
	assert.IsType(t, &Fallback{}, a)

	a, degraded, err = New(ctx, Options{Provider: "ollama"})
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.IsType(t, &OllamaAugmenter{}, a)

	_, _, err = New(ctx, Options{Provider: "bard"})
	assert.Error(t, err)
}

func TestFallback_IsDeterministic(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	f := &Fallback{Now: func() time.Time { return at }}
	d, err := f.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "Code executed at 20240301_093000", d.Software)
	assert.Equal(t, "Computation executed at 20240301_093000", d.Computation)
	assert.Empty(t, d.Inputs)
}
