package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pressflow/pressflow/internal/config"
	"github.com/pressflow/pressflow/internal/models"
)

// WordPressPublisher pushes articles to a WordPress site over the REST API
// using an application password.
type WordPressPublisher struct {
	baseURL     string
	username    string
	appPassword string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewWordPressPublisher creates a publisher from configuration.
func NewWordPressPublisher(cfg config.WordPressConfig, logger *slog.Logger) (*WordPressPublisher, error) {
	if cfg.BaseURL == "" || cfg.Username == "" || cfg.AppPassword == "" {
		return nil, fmt.Errorf("WordPress base URL, username and app password are required")
	}

	return &WordPressPublisher{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		username:    cfg.Username,
		appPassword: cfg.AppPassword,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

type wordPressPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt,omitempty"`
	Status  string `json:"status"`
}

type wordPressPostResponse struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

// Publish creates a post and returns its id. Rules that require approval get
// a draft instead of an immediate publication.
func (p *WordPressPublisher) Publish(ctx context.Context, article *models.Article, rule models.AutomationRule) (string, error) {
	status := "publish"
	if rule.RequireApproval || !rule.AutoPublish {
		status = "draft"
	}

	postReq := wordPressPostRequest{
		Title:   article.Title,
		Content: article.Body,
		Excerpt: article.Excerpt,
		Status:  status,
	}

	bodyBytes, err := json.Marshal(postReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal post request: %w", err)
	}

	apiURL := p.baseURL + "/wp-json/wp/v2/posts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.username, p.appPassword)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to publish post: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("wordpress API returned status %d: %s", resp.StatusCode, string(respBytes))
	}

	var postResp wordPressPostResponse
	if err := json.Unmarshal(respBytes, &postResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if postResp.ID == 0 {
		return "", fmt.Errorf("wordpress API returned no post id")
	}

	p.logger.Info("published post",
		"post_id", postResp.ID,
		"status", status,
		"link", postResp.Link)

	return fmt.Sprintf("%d", postResp.ID), nil
}
