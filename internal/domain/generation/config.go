package generation

// Messages holds user-facing replies.
type Messages struct {
	EmptyMessage   string
	PromptTooShort string
	InvalidSubject string
	// QuotaDenied is a format string receiving the used count and the limit.
	QuotaDenied   string
	TextFallback  string
	ImageFailed   string
	NoProvider    string
	StorageFailed string
	Unavailable   string
}

// Config holds dispatcher configuration.
type Config struct {
	TextSystemPrompt  string
	ImageSize         string
	MinImagePromptLen int
	Messages          Messages
}

// DefaultMessages returns the default Traditional Chinese replies.
func DefaultMessages() Messages {
	return Messages{
		EmptyMessage:   "⚠️ 請輸入訊息內容。",
		PromptTooShort: "⚠️ 請提供清楚的圖片描述內容。",
		InvalidSubject: "⚠️ 無法識別使用者身分，請重新整理頁面後再試。",
		QuotaDenied:    "今日圖片生成次數已達上限（%d/%d），請明天再試或升級會員。",
		TextFallback:   "抱歉，我現在有點忙，請稍後再試一次 🙏",
		ImageFailed:    "⚠️ 圖片生成失敗，請稍後再試。",
		NoProvider:     "⚠️ 目前沒有可用的生成服務。",
		StorageFailed:  "⚠️ 圖片儲存失敗，請稍後再試。",
		Unavailable:    "⚠️ 服務暫時無法使用，請稍後再試。",
	}
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() *Config {
	return &Config{
		ImageSize:         "1024x1024",
		MinImagePromptLen: 2,
		Messages:          DefaultMessages(),
	}
}

// withDefaults fills blank messages from the defaults.
func (c *Config) withDefaults() *Config {
	out := *c
	def := DefaultMessages()
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&out.Messages.EmptyMessage, def.EmptyMessage)
	fill(&out.Messages.PromptTooShort, def.PromptTooShort)
	fill(&out.Messages.InvalidSubject, def.InvalidSubject)
	fill(&out.Messages.QuotaDenied, def.QuotaDenied)
	fill(&out.Messages.TextFallback, def.TextFallback)
	fill(&out.Messages.ImageFailed, def.ImageFailed)
	fill(&out.Messages.NoProvider, def.NoProvider)
	fill(&out.Messages.StorageFailed, def.StorageFailed)
	fill(&out.Messages.Unavailable, def.Unavailable)
	return &out
}
