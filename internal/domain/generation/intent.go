package generation

import (
	"regexp"
	"strings"

	"github.com/genrelay/server/internal/model"
)

// Chinese tokens match as substrings; English tokens match whole words.
var (
	defaultCJKKeywords = []string{
		"畫", "画", "繪", "绘", "圖片", "图片", "圖像", "图像", "插畫", "插画",
		"海報", "海报", "設計", "设计", "生成圖", "生成图", "照片", "頭像", "头像",
		"桌布", "壁紙", "壁纸",
	}
	defaultEnglishKeywords = []string{
		"draw", "drawing", "paint", "painting", "sketch", "illustration",
		"illustrate", "poster", "picture", "image", "photo", "logo",
		"wallpaper", "render", "avatar",
	}
)

// Classifier decides whether a message asks for an image.
type Classifier struct {
	pattern *regexp.Regexp
}

// NewClassifier builds a classifier from the default vocabulary plus extra keywords.
func NewClassifier(extraKeywords ...string) *Classifier {
	cjk := append([]string(nil), defaultCJKKeywords...)
	english := append([]string(nil), defaultEnglishKeywords...)
	for _, kw := range extraKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if isASCII(kw) {
			english = append(english, kw)
		} else {
			cjk = append(cjk, kw)
		}
	}

	alts := make([]string, 0, len(cjk)+1)
	for _, kw := range cjk {
		alts = append(alts, regexp.QuoteMeta(kw))
	}
	words := make([]string, 0, len(english))
	for _, kw := range english {
		words = append(words, regexp.QuoteMeta(kw))
	}
	alts = append(alts, `\b(?:`+strings.Join(words, "|")+`)s?\b`)

	return &Classifier{pattern: regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)}
}

// Classify returns ModeImage when the text contains image vocabulary.
func (c *Classifier) Classify(text string) model.Mode {
	if c.pattern.MatchString(text) {
		return model.ModeImage
	}
	return model.ModeText
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
