package documenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dkeller/facetidx/pkg/types"
)

const (
	// DefaultModel is the default chat model for documentation.
	DefaultModel = "gpt-4o-mini"
	// DefaultBaseURL targets the OpenAI chat completions API; any
	// OpenAI-compatible endpoint works.
	DefaultBaseURL = "https://api.openai.com/v1"
)

const systemPrompt = `You are a code documentation engine. Given the chunks of one source file,
produce line-level documentation as a strict JSON array. Each element:
{"lineNumber": <1-based int>, "comment": "<one sentence>",
 "keywords": [...], "topics": [...], "goals": [...], "dependencies": [...]}
Emit one element per significant line (function signatures, key statements).
Output only the JSON array, no prose.`

// LLMDocumenter documents files through an OpenAI-compatible chat
// completions endpoint.
type LLMDocumenter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewLLM creates a documenter against an OpenAI-compatible API.
func NewLLM(apiKey, model, baseURL string) (*LLMDocumenter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key not set", ErrDocumenterFailed)
	}
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &LLMDocumenter{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Document sends the whole file's chunk list in one request and parses the
// returned LineDocs. Provider errors are returned as-is; the pipeline
// decides whether to skip the file.
func (d *LLMDocumenter) Document(ctx context.Context, file *types.ChunkedFile) ([]types.LineDoc, error) {
	content, err := d.callAPI(ctx, renderFile(file))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumenterFailed, file.Filename, err)
	}
	docs, err := parseLineDocs(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadResponse, file.Filename, err)
	}
	return docs, nil
}

// renderFile lays the file out for the model: each chunk labeled with its
// tree-node type, each line prefixed with its 1-based number so returned
// lineNumber values map back onto blobs.
func renderFile(file *types.ChunkedFile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s\n", file.Filename)
	for _, chunk := range file.Chunks {
		fmt.Fprintf(&sb, "\n--- chunk %s (%s) ---\n", chunk.ID, chunk.TreeName)
		for i := range chunk.Blobs {
			blob := &chunk.Blobs[i]
			if blob.Breadcrumb {
				continue
			}
			for j, line := range blob.Lines {
				fmt.Fprintf(&sb, "%d: %s\n", blob.Start+j+1, line)
			}
		}
	}
	return sb.String()
}

func (d *LLMDocumenter) callAPI(ctx context.Context, userContent string) (string, error) {
	reqBody := map[string]interface{}{
		"model": d.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userContent},
		},
		"temperature": 0,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return apiResp.Choices[0].Message.Content, nil
}

// parseLineDocs extracts a LineDoc array from model output, tolerating a
// markdown code fence around the JSON.
func parseLineDocs(content string) ([]types.LineDoc, error) {
	content = strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(content, "```json"); ok {
		content = after
	} else if after, ok := strings.CutPrefix(content, "```"); ok {
		content = after
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	var docs []types.LineDoc
	if err := json.Unmarshal([]byte(content), &docs); err != nil {
		return nil, fmt.Errorf("parse line docs: %w", err)
	}
	valid := docs[:0]
	for i := range docs {
		if err := docs[i].Validate(); err != nil {
			continue
		}
		valid = append(valid, docs[i])
	}
	return valid, nil
}
