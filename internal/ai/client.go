package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o"
)

// Client talks to an OpenAI-compatible chat completions endpoint that
// accepts image and video content parts.
type Client struct {
	config     *Config
	httpClient *http.Client
}

func NewClient(config *Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.MaxIdentifications == 0 {
		config.MaxIdentifications = 3
	}

	timeout := config.RequestTimeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *mediaURL `json:"image_url,omitempty"`
	VideoURL *mediaURL `json:"video_url,omitempty"`
}

type mediaURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// MatchPerson sends the reference photo and video to the model and
// parses its structured verdict. An empty or unparseable reply is a
// hard error; the caller decides how to degrade.
func (c *Client) MatchPerson(ctx context.Context, photoRef, videoRef string, duration float64) (*RawVerdict, error) {
	prompt := c.buildPrompt(duration)

	reqBody := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &mediaURL{URL: photoRef}},
					{Type: "video_url", VideoURL: &mediaURL{URL: videoRef}},
				},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("model API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}

	return parseVerdict(chatResp.Choices[0].Message.Content)
}

func (c *Client) buildPrompt(duration float64) string {
	return fmt.Sprintf(`You are given a reference photograph of a person and a video clip of about %.1f seconds.
Determine whether the person shown in the photograph appears anywhere in the video.

Reply with ONLY a JSON object, no other text, in this exact shape:
{
  "is_present": true or false,
  "confidence": number between 0 and 1,
  "reason": "short explanation of your decision",
  "identifications": [
    {
      "timestamp": seconds into the video where the person is visible,
      "bounding_box": {"x_min": 0.0, "y_min": 0.0, "x_max": 1.0, "y_max": 1.0}
    }
  ]
}

Rules:
- Report at most %d identifications, at the moments where the person is most clearly visible.
- Every timestamp must be between 0 and %.1f seconds.
- bounding_box is optional; include it only when you can locate the person, using fractional coordinates (0-1) of the frame.
- If the person does not appear, set is_present to false and identifications to an empty array.`,
		duration, c.config.MaxIdentifications, duration)
}

// parseVerdict extracts the JSON verdict from the model's reply,
// tolerating markdown code fences around it.
func parseVerdict(content string) (*RawVerdict, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var verdict RawVerdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse model verdict: %w", err)
	}

	return &verdict, nil
}
