package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pressflow/pressflow/internal/config"
	"github.com/pressflow/pressflow/internal/models"
)

// PexelsImageFinder searches the Pexels stock photo API for article images.
type PexelsImageFinder struct {
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPexelsImageFinder creates an image finder from configuration.
func NewPexelsImageFinder(cfg config.ImagesConfig, logger *slog.Logger) (*PexelsImageFinder, error) {
	if cfg.PexelsAPIKey == "" {
		return nil, fmt.Errorf("Pexels API key is required")
	}

	return &PexelsImageFinder{
		apiKey: cfg.PexelsAPIKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}, nil
}

type pexelsSearchResponse struct {
	Photos []struct {
		Src struct {
			Large string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// FindImages searches for photos matching the article's keywords, falling back
// to the category when no keywords are set.
func (f *PexelsImageFinder) FindImages(ctx context.Context, article *models.Article) (*models.ImageSet, error) {
	query := article.Category
	if len(article.Keywords) > 0 {
		query = strings.Join(article.Keywords[:min(3, len(article.Keywords))], " ")
	}
	if query == "" {
		query = article.Title
	}

	apiURL := fmt.Sprintf("https://api.pexels.com/v1/search?query=%s&per_page=3", url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image search failed: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels API returned status %d", resp.StatusCode)
	}

	var searchResp pexelsSearchResponse
	if err := json.Unmarshal(respBytes, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(searchResp.Photos) == 0 {
		return nil, fmt.Errorf("no images found for %q", query)
	}

	set := &models.ImageSet{
		FeaturedURL: searchResp.Photos[0].Src.Large,
	}
	for _, photo := range searchResp.Photos {
		set.URLs = append(set.URLs, photo.Src.Large)
	}

	f.logger.Debug("found images", "query", query, "count", len(set.URLs))
	return set, nil
}
