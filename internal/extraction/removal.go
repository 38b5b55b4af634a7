package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"printshop/internal/domain"
	"printshop/internal/infra"
)

const (
	removeBgEndpoint    = "https://api.remove.bg/v1.0/removebg"
	rembgCallTimeout    = 2 * time.Minute
	removeBgCallTimeout = 60 * time.Second
	rembgHealthTimeout  = 5 * time.Second
	maxRemovalRespBytes = 64 << 20
)

// RemovalOptions controls how the background-removal client is configured.
// RembgEndpoint points at a self-hosted rembg service; RemoveBgAPIKey enables
// the remove.bg API as a fallback. At least one must be set.
type RemovalOptions struct {
	RembgEndpoint  string
	RemoveBgAPIKey string
	HTTPClient     *http.Client
	Logger         *infra.Logger
}

// RemovalClient implements BackgroundRemover. The self-hosted endpoint is
// preferred when its health probe succeeds; remove.bg is the fallback. A 402
// from remove.bg latches creditsExhausted so later calls short-circuit to a
// terminal failure instead of burning request quota.
type RemovalClient struct {
	rembgEndpoint    string
	removeBgURL      string
	apiKey           string
	httpClient       *http.Client
	logger           *infra.Logger
	useSelfHosted    atomic.Bool
	creditsExhausted atomic.Bool
}

// NewRemovalClient validates the options and returns an uninitialized client;
// call Initialize before first use to probe the self-hosted service.
func NewRemovalClient(opts RemovalOptions) (*RemovalClient, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.RembgEndpoint), "/")
	apiKey := strings.TrimSpace(opts.RemoveBgAPIKey)
	if endpoint == "" && apiKey == "" {
		return nil, errors.New("extraction: no background removal service configured")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: rembgCallTimeout}
	}
	return &RemovalClient{
		rembgEndpoint: endpoint,
		removeBgURL:   removeBgEndpoint,
		apiKey:        apiKey,
		httpClient:    httpClient,
		logger:        opts.Logger,
	}, nil
}

// Initialize probes the self-hosted rembg service and records whether it is
// reachable. Safe to call once at process start.
func (c *RemovalClient) Initialize(ctx context.Context) error {
	if c.rembgEndpoint == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, rembgHealthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rembgEndpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
	}
	healthy := err == nil && resp.StatusCode == http.StatusOK
	c.useSelfHosted.Store(healthy)
	if c.logger != nil {
		if healthy {
			c.logger.Info().Msg("self-hosted rembg service initialized")
		} else {
			c.logger.Warn().Msg("self-hosted rembg unavailable, will use remove.bg fallback")
		}
	}
	if !healthy && c.apiKey == "" {
		return errors.New("extraction: rembg unreachable and no remove.bg api key configured")
	}
	return nil
}

// ResetCreditsFlag clears the latched credits-exhausted state, for use after
// the remove.bg plan is topped up.
func (c *RemovalClient) ResetCreditsFlag() {
	c.creditsExhausted.Store(false)
}

// RemoveBackground strips the background from the image, preferring the
// self-hosted service and falling back to remove.bg on its failure.
func (c *RemovalClient) RemoveBackground(ctx context.Context, image []byte) ([]byte, error) {
	if len(image) == 0 {
		return nil, domain.Retryable(domain.StageBackgroundRemoval, errors.New("input image is empty"))
	}

	if c.useSelfHosted.Load() {
		out, err := c.removeSelfHosted(ctx, image)
		if err == nil {
			return out, nil
		}
		if c.apiKey == "" {
			return nil, domain.Retryable(domain.StageBackgroundRemoval,
				fmt.Errorf("self-hosted background removal failed: %w", err))
		}
		if c.logger != nil {
			c.logger.Warn().Err(err).Msg("self-hosted rembg failed, falling back to remove.bg")
		}
	} else if c.apiKey == "" {
		return nil, domain.Retryable(domain.StageBackgroundRemoval,
			errors.New("no background removal service available"))
	}

	return c.removeWithRemoveBg(ctx, image)
}

func (c *RemovalClient) removeSelfHosted(ctx context.Context, image []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, rembgCallTimeout)
	defer cancel()

	body, contentType, err := multipartImage(image, nil)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rembgEndpoint+"/remove", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rembg status %d", resp.StatusCode)
	}
	out, err := io.ReadAll(io.LimitReader(resp.Body, maxRemovalRespBytes))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrEmptyArtifact
	}
	return out, nil
}

func (c *RemovalClient) removeWithRemoveBg(ctx context.Context, image []byte) ([]byte, error) {
	if c.creditsExhausted.Load() {
		return nil, domain.Terminal(domain.StageBackgroundRemoval,
			errors.New("CREDITS_EXHAUSTED: remove.bg credits exhausted"))
	}

	ctx, cancel := context.WithTimeout(ctx, removeBgCallTimeout)
	defer cancel()

	// Full resolution, PNG output for transparency.
	body, contentType, err := multipartImage(image, map[string]string{"size": "full", "format": "png"})
	if err != nil {
		return nil, domain.Retryable(domain.StageBackgroundRemoval, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.removeBgURL, body)
	if err != nil {
		return nil, domain.Retryable(domain.StageBackgroundRemoval, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.Retryable(domain.StageBackgroundRemoval, fmt.Errorf("remove.bg request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRemovalRespBytes))
	if err != nil {
		return nil, domain.Retryable(domain.StageBackgroundRemoval, fmt.Errorf("read remove.bg response: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if len(raw) == 0 {
			return nil, domain.Retryable(domain.StageBackgroundRemoval, domain.ErrEmptyArtifact)
		}
		return raw, nil
	case http.StatusPaymentRequired:
		c.creditsExhausted.Store(true)
		if c.logger != nil {
			c.logger.Warn().Msg("remove.bg credits exhausted, later calls will be skipped")
		}
		return nil, domain.Terminal(domain.StageBackgroundRemoval,
			errors.New("CREDITS_EXHAUSTED: remove.bg credits exhausted"))
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.Terminal(domain.StageBackgroundRemoval,
			errors.New("AUTH_FAILED: remove.bg rejected api key"))
	default:
		return nil, domain.Retryable(domain.StageBackgroundRemoval,
			fmt.Errorf("remove.bg error (%d): %s", resp.StatusCode, removeBgErrorTitle(raw)))
	}
}

func removeBgErrorTitle(raw []byte) string {
	var parsed struct {
		Errors []struct {
			Title string `json:"title"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Errors) > 0 && parsed.Errors[0].Title != "" {
		return parsed.Errors[0].Title
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func multipartImage(image []byte, fields map[string]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("image_file", "image.png")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(image); err != nil {
		return nil, "", err
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}
