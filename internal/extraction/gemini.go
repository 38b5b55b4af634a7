package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"printshop/internal/domain"
	"printshop/internal/infra"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.5-flash-image-preview"
	geminiCallTimeout    = 60 * time.Second

	// Downloaded source images are capped to keep a hostile URL from
	// exhausting worker memory.
	maxSourceBytes = 32 << 20
)

// GeminiOptions controls how the recomposition client is configured.
type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// GeminiClient implements Recomposer against the Gemini generateContent API.
// Constructed once at process start and injected into the orchestrator.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewGeminiClient validates the options and returns a ready client.
func NewGeminiClient(opts GeminiOptions) (*GeminiClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("extraction: gemini api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultGeminiModel
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: geminiCallTimeout}
	}
	return &GeminiClient{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *GeminiClient) Model() string { return c.model }

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiGenerateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// Recompose sends the source photo with the extraction instruction and returns
// the redrawn design bytes. Failures are classified: auth and quota problems
// are terminal, everything else is retryable.
func (c *GeminiClient) Recompose(ctx context.Context, source string) ([]byte, error) {
	srcBytes, mimeType, err := c.loadSource(ctx, source)
	if err != nil {
		return nil, domain.Retryable(domain.StageRecomposition, err)
	}

	reqBody := geminiGenerateRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: extractionPrompt},
				{InlineData: &geminiInlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(srcBytes)}},
			},
		}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, domain.Retryable(domain.StageRecomposition, fmt.Errorf("marshal request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, geminiCallTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.Retryable(domain.StageRecomposition, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.Retryable(domain.StageRecomposition, fmt.Errorf("gemini request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, domain.Retryable(domain.StageRecomposition, fmt.Errorf("read gemini response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyGeminiStatus(resp.StatusCode, body)
	}

	var parsed geminiGenerateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domain.Retryable(domain.StageRecomposition, fmt.Errorf("decode gemini response: %w", err))
	}

	img := firstInlineImage(parsed)
	if len(img) == 0 {
		return nil, domain.Retryable(domain.StageRecomposition,
			fmt.Errorf("extraction failed: %w", domain.ErrEmptyArtifact))
	}
	if c.logger != nil {
		c.logger.Debug().Int("bytes", len(img)).Msg("gemini recomposition completed")
	}
	return img, nil
}

func classifyGeminiStatus(status int, body []byte) error {
	var apiErr geminiErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.Terminal(domain.StageRecomposition,
			fmt.Errorf("AUTH_FAILED: gemini rejected credentials (%d): %s", status, msg))
	case http.StatusTooManyRequests:
		return domain.Terminal(domain.StageRecomposition,
			fmt.Errorf("CREDITS_EXHAUSTED: gemini quota exhausted (%d): %s", status, msg))
	default:
		return domain.Retryable(domain.StageRecomposition,
			fmt.Errorf("gemini error (%d): %s", status, msg))
	}
}

func firstInlineImage(resp geminiGenerateResponse) []byte {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MimeType, "image/") {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil || len(data) == 0 {
				continue
			}
			return data
		}
	}
	return nil
}

// loadSource reads the input image from a local path or fetches it from an
// http(s) URL, and derives its MIME type from the extension.
func (c *GeminiClient) loadSource(ctx context.Context, source string) ([]byte, string, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, rerr := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if rerr != nil {
			return nil, "", rerr
		}
		resp, derr := c.httpClient.Do(req)
		if derr != nil {
			return nil, "", fmt.Errorf("fetch source image: %w", derr)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("fetch source image: status %d", resp.StatusCode)
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, "", fmt.Errorf("read source image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("source image is empty")
	}
	return data, mimeForExtension(source), nil
}

func mimeForExtension(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(filepath.Ext(strings.TrimRight(p, "/"))) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/jpeg"
	}
}
