package generation

import (
	"strings"
	"testing"

	"github.com/pressflow/pressflow/internal/models"
)

func TestComposeTweetStaysWithinLimit(t *testing.T) {
	article := &models.Article{
		Title:    strings.Repeat("Very Long Title ", 20),
		Excerpt:  strings.Repeat("excerpt ", 30),
		Keywords: []string{"golang", "web development", "performance"},
	}

	text := composeTweet(article)
	if len(text) > tweetMaxLength {
		t.Errorf("tweet length = %d, want <= %d", len(text), tweetMaxLength)
	}
}

func TestComposeTweetAddsHashtags(t *testing.T) {
	article := &models.Article{
		Title:    "Short title",
		Keywords: []string{"golang", "web dev"},
	}

	text := composeTweet(article)
	if !strings.Contains(text, "#golang") {
		t.Errorf("missing hashtag in %q", text)
	}
	if !strings.Contains(text, "#webdev") {
		t.Errorf("keyword spaces not collapsed in %q", text)
	}
}
