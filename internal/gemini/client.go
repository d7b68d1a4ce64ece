package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const modelImage = "gemini-2.5-flash-image-preview"

var (
	// ErrNoAPIKey is returned before any network call when the client was
	// built without a credential.
	ErrNoAPIKey = errors.New("gemini api key is not set")

	// ErrBlocked is returned when the API refuses the request for safety
	// reasons; the provider's reason is attached to the error message.
	ErrBlocked = errors.New("gemini blocked the request")

	// ErrNoImage is returned when the call succeeded but the response
	// contained no image data.
	ErrNoImage = errors.New("gemini returned no image")
)

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// Remix sends the images plus the instruction prompt in a single
// generateContent call and returns the generated image(s). One attempt,
// no retry: a failed generation is reported to the caller as-is.
func (c *Client) Remix(ctx context.Context, prompt string, images []ImageInput) (Response, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return Response{}, ErrNoAPIKey
	}
	if c.httpClient == nil {
		return Response{}, errors.New("http client is nil")
	}
	if strings.TrimSpace(prompt) == "" {
		return Response{}, errors.New("prompt is empty")
	}

	// Image parts come first, the instruction last; the prompt refers to
	// the images by position ("image 1", "image 2", ...).
	parts := make([]part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, part{
			InlineData: &blob{
				MimeType: img.MimeType,
				Data:     img.Data,
			},
		})
	}
	parts = append(parts, part{Text: prompt})

	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}

	c.logger.Debug("gemini request", "model", modelImage, "images", len(images))

	resp, err := c.generateContent(ctx, modelImage, req)
	if err != nil {
		return Response{}, err
	}
	if len(resp.Images) == 0 {
		return Response{}, fmt.Errorf("%w (model said: %s)", ErrNoImage, compactText(resp.Text))
	}
	return resp, nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return Response{}, apiErrorFromBody(httpResp.Status, rawBody)
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return Response{}, fmt.Errorf("%w: %s", ErrBlocked, decoded.PromptFeedback.BlockReason)
	}

	text, images := extractParts(decoded)
	if len(images) == 0 {
		if reason := finishReason(decoded); strings.EqualFold(reason, "SAFETY") {
			return Response{}, fmt.Errorf("%w: finish reason %s", ErrBlocked, reason)
		}
	}

	return Response{Text: text, Images: images}, nil
}

func extractParts(resp generateContentResponse) (string, []GeneratedImage) {
	if len(resp.Candidates) == 0 {
		return "", nil
	}

	var textBuilder strings.Builder
	var images []GeneratedImage

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			mimeType := p.InlineData.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			images = append(images, GeneratedImage{
				Data:     p.InlineData.Data,
				MimeType: mimeType,
			})
		}
	}

	return textBuilder.String(), images
}

func finishReason(resp generateContentResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	return resp.Candidates[0].FinishReason
}

func apiErrorFromBody(status string, body []byte) error {
	var decoded apiErrorResponse
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error.Message != "" {
		msg := decoded.Error.Message
		if strings.Contains(strings.ToUpper(decoded.Error.Status), "SAFETY") {
			return fmt.Errorf("%w: %s", ErrBlocked, msg)
		}
		return fmt.Errorf("gemini API %s: %s", status, msg)
	}
	return fmt.Errorf("gemini API %s: %s", status, compactText(string(body)))
}

func compactText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "(empty)"
	}
	const max = 200
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

// blob relies on encoding/json base64-encoding []byte values, which is
// exactly the wire format inlineData expects.
type blob struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type generateContentResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
