package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pressflow/pressflow/internal/config"
	"github.com/pressflow/pressflow/internal/models"
)

// OpenAIClient implements the topic and content generation contracts on top
// of the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIClient creates a generation client from configuration.
func NewOpenAIClient(cfg config.OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	return &OpenAIClient{
		client: openai.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

type topicListResponse struct {
	Topics []struct {
		Title    string   `json:"title"`
		Keywords []string `json:"keywords"`
		Score    float64  `json:"score"`
	} `json:"topics"`
}

// GenerateTopics asks the model for article topic candidates in a category.
func (c *OpenAIClient) GenerateTopics(ctx context.Context, category string, count int) ([]models.TopicCandidate, error) {
	if count < 1 {
		count = 10
	}

	systemPrompt := `You are a content strategist for a blog network. Respond with a JSON object
of the form {"topics": [{"title": "...", "keywords": ["..."], "score": 0.0}]}.
Scores range from 0 to 1 and reflect expected reader interest. Titles must be
distinct and specific.`

	userPrompt := fmt.Sprintf("Suggest %d article topics for the category %q.", count, category)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.8,
	})
	if err != nil {
		return nil, fmt.Errorf("topic generation request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("topic generation returned no choices")
	}

	var parsed topicListResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse topic response: %w", err)
	}

	candidates := make([]models.TopicCandidate, 0, len(parsed.Topics))
	for _, t := range parsed.Topics {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}
		candidates = append(candidates, models.TopicCandidate{
			Title:    title,
			Keywords: t.Keywords,
			Score:    t.Score,
		})
	}

	c.logger.Debug("generated topic candidates",
		"category", category,
		"requested", count,
		"returned", len(candidates))

	return candidates, nil
}

type articleResponse struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Excerpt string `json:"excerpt"`
}

// GenerateContent writes an article for the given topic using the rule's
// content settings. An empty body from the model is treated as an error.
func (c *OpenAIClient) GenerateContent(ctx context.Context, topic models.ArticleTopic, rule models.AutomationRule) (*models.Article, error) {
	systemPrompt := fmt.Sprintf(`You are a blog writer. Respond with a JSON object
{"title": "...", "body": "...", "excerpt": "..."}. Write in a %s tone,
between %d and %d words. The body is HTML paragraphs without a top-level heading.`,
		rule.Tone, rule.MinWords, rule.MaxWords)

	userPrompt := fmt.Sprintf("Write an article titled %q in category %q. Work in these keywords: %s.",
		topic.Title, topic.Category, strings.Join(topic.Keywords, ", "))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("content generation request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("content generation returned no choices")
	}

	var parsed articleResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse article response: %w", err)
	}

	body := strings.TrimSpace(parsed.Body)
	if body == "" {
		return nil, fmt.Errorf("content generation returned an empty body")
	}

	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		title = topic.Title
	}

	article := &models.Article{
		Title:     title,
		Body:      body,
		Excerpt:   strings.TrimSpace(parsed.Excerpt),
		Category:  topic.Category,
		Keywords:  topic.Keywords,
		WordCount: len(strings.Fields(body)),
	}

	c.logger.Debug("generated article",
		"topic_id", topic.ID,
		"title", article.Title,
		"word_count", article.WordCount,
		"tokens_used", resp.Usage.TotalTokens)

	return article, nil
}
