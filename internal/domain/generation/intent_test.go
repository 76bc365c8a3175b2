package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/genrelay/server/internal/model"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		text string
		want model.Mode
	}{
		{"traditional chinese draw", "請幫我畫一隻貓", model.ModeImage},
		{"question", "什麼是光合作用", model.ModeText},
		{"simplified chinese draw", "帮我画一只狗", model.ModeImage},
		{"poster", "做一張海報給我", model.ModeImage},
		{"photo", "生成一張夕陽照片", model.ModeImage},
		{"english draw", "Draw a cat wearing a hat", model.ModeImage},
		{"english plural", "show me some pictures of mountains", model.ModeImage},
		{"english logo", "I need a LOGO for my bakery", model.ModeImage},
		{"english chat", "What is the capital of France?", model.ModeText},
		{"word boundary", "Can you imagine a world without war?", model.ModeText},
		{"greeting", "你好", model.ModeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text))
		})
	}
}

func TestClassifier_Deterministic(t *testing.T) {
	c := NewClassifier()
	for i := 0; i < 10; i++ {
		assert.Equal(t, model.ModeImage, c.Classify("請幫我畫一隻貓"))
	}
}

func TestClassifier_ExtraKeywords(t *testing.T) {
	c := NewClassifier("漫畫風", "Anime", " ", "")

	assert.Equal(t, model.ModeImage, c.Classify("來點漫畫風"))
	assert.Equal(t, model.ModeImage, c.Classify("an anime girl"))
	assert.Equal(t, model.ModeText, c.Classify("hello there"))
}

func TestClassifier_ExtraKeywordsAreQuoted(t *testing.T) {
	c := NewClassifier("c++")

	assert.Equal(t, model.ModeText, c.Classify("ccc"))
}
