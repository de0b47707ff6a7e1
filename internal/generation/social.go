package generation

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pressflow/pressflow/internal/config"
	"github.com/pressflow/pressflow/internal/models"
)

const tweetMaxLength = 280

// TwitterPromoter announces published articles on Twitter using API v2 with
// OAuth 1.0a request signing.
type TwitterPromoter struct {
	apiKey            string
	apiSecret         string
	accessToken       string
	accessTokenSecret string
	httpClient        *http.Client
	logger            *slog.Logger
}

// NewTwitterPromoter creates a promoter from configuration.
func NewTwitterPromoter(cfg config.TwitterConfig, logger *slog.Logger) (*TwitterPromoter, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("twitter credentials are incomplete")
	}

	return &TwitterPromoter{
		apiKey:            cfg.APIKey,
		apiSecret:         cfg.APISecret,
		accessToken:       cfg.AccessToken,
		accessTokenSecret: cfg.AccessTokenSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// Promote posts an announcement tweet for the article. A failed post is
// reported in the platform result, not as an error; promotion never fails a
// run.
func (p *TwitterPromoter) Promote(ctx context.Context, article *models.Article, rule models.AutomationRule) ([]models.PlatformResult, error) {
	text := composeTweet(article)

	tweetID, err := p.postTweet(ctx, text)
	result := models.PlatformResult{Platform: "twitter"}
	if err != nil {
		result.Error = err.Error()
	} else {
		result.PostID = tweetID
		result.URL = "https://twitter.com/i/status/" + tweetID
	}

	return []models.PlatformResult{result}, nil
}

func composeTweet(article *models.Article) string {
	text := article.Title
	if article.Excerpt != "" {
		text += "\n\n" + article.Excerpt
	}
	for _, kw := range article.Keywords {
		tag := " #" + strings.ReplaceAll(strings.ToLower(kw), " ", "")
		if len(text)+len(tag) > tweetMaxLength {
			break
		}
		text += tag
	}
	if len(text) > tweetMaxLength {
		text = text[:tweetMaxLength-3] + "..."
	}
	return text
}

func (p *TwitterPromoter) postTweet(ctx context.Context, text string) (string, error) {
	apiURL := "https://api.twitter.com/2/tweets"

	bodyBytes, err := json.Marshal(tweetRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal tweet request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	authHeader, err := p.oauthHeader(http.MethodPost, apiURL)
	if err != nil {
		return "", fmt.Errorf("failed to generate OAuth header: %w", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to post tweet: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var tweetResp tweetResponse
	if err := json.Unmarshal(respBytes, &tweetResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		if len(tweetResp.Errors) > 0 {
			return "", fmt.Errorf("twitter API error: %s", tweetResp.Errors[0].Message)
		}
		return "", fmt.Errorf("twitter API returned status %d", resp.StatusCode)
	}

	p.logger.Info("tweet posted", "tweet_id", tweetResp.Data.ID)
	return tweetResp.Data.ID, nil
}

// oauthHeader builds an OAuth 1.0a authorization header for a request with a
// JSON body (no form parameters participate in the signature).
func (p *TwitterPromoter) oauthHeader(method, apiURL string) (string, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	nonceStr := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base64.StdEncoding.EncodeToString(nonce))

	oauthParams := map[string]string{
		"oauth_consumer_key":     p.apiKey,
		"oauth_nonce":            nonceStr,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
		"oauth_token":            p.accessToken,
		"oauth_version":          "1.0",
	}

	var paramPairs []string
	for k, v := range oauthParams {
		paramPairs = append(paramPairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	sort.Strings(paramPairs)
	paramString := strings.Join(paramPairs, "&")

	signatureBase := method + "&" + url.QueryEscape(apiURL) + "&" + url.QueryEscape(paramString)
	signingKey := url.QueryEscape(p.apiSecret) + "&" + url.QueryEscape(p.accessTokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(signatureBase))
	oauthParams["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	var authPairs []string
	for k, v := range oauthParams {
		authPairs = append(authPairs, url.QueryEscape(k)+"=\""+url.QueryEscape(v)+"\"")
	}
	sort.Strings(authPairs)

	return "OAuth " + strings.Join(authPairs, ", "), nil
}
