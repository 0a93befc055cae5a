package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kmorozova/mealscan/internal/common"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI rejects base64 image payloads above roughly 20MB.
const maxEncodedBytes = 20 * 1024 * 1024

const maxTokens = 2000

type Client struct {
	openAI *openai.Client
	model  string
}

// Result carries the parsed model answer plus usage metadata.
type Result struct {
	JSON             json.RawMessage
	Model            string
	TokensUsed       int
	ProcessingTimeMs int
}

func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = openai.GPT4o
	}
	return &Client{
		openAI: openai.NewClient(apiKey),
		model:  model,
	}
}

// DataURL base64-encodes image bytes into a data URL the chat API accepts.
func DataURL(contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty image data")
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	if len(encoded) > maxEncodedBytes {
		return "", fmt.Errorf("image too large: %d bytes encoded", len(encoded))
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, encoded), nil
}

// AnalyzeImage sends one image with the given prompt and returns the JSON
// document the model answered with.
func (c *Client) AnalyzeImage(ctx context.Context, prompt string, imageData []byte, contentType string) (*Result, error) {
	start := time.Now()

	imageURL, err := DataURL(contentType, imageData)
	if err != nil {
		return nil, err
	}

	// image first, then text: the API understands images better that way
	userContent := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    imageURL,
				Detail: openai.ImageURLDetailHigh,
			},
		},
		{
			Type: openai.ChatMessagePartTypeText,
			Text: "Analyze this image. Return only the JSON object.",
		},
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt,
		},
		{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: userContent,
		},
	}

	slog.Info("sending request to OpenAI",
		"model", c.model,
		"image_size_bytes", len(imageData),
		"content_type", contentType)

	resp, err := c.openAI.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		slog.Error("OpenAI API error", "error", err, "model", c.model)
		return nil, fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", common.ErrUpstream)
	}

	content := resp.Choices[0].Message.Content
	doc, err := ExtractJSON(content)
	if err != nil {
		preview := content
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		slog.Error("model reply is not JSON", "model", resp.Model, "preview", preview)
		return nil, err
	}

	slog.Info("received response from OpenAI",
		"model", resp.Model,
		"tokens_used", resp.Usage.TotalTokens,
		"response_length", len(content))

	return &Result{
		JSON:             doc,
		Model:            resp.Model,
		TokensUsed:       resp.Usage.TotalTokens,
		ProcessingTimeMs: int(time.Since(start).Milliseconds()),
	}, nil
}

// ExtractJSON pulls the single JSON document out of a model reply. Models
// sometimes wrap the answer in markdown fences or add a sentence around it.
func ExtractJSON(content string) (json.RawMessage, error) {
	s := strings.TrimSpace(content)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if json.Valid([]byte(s)) {
		return json.RawMessage(s), nil
	}

	// fall back to the outermost braces
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		candidate := s[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, common.ErrModelGarbled
}
