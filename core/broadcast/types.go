package broadcast

// Recipient is one member of a broadcast audience.
type Recipient struct {
	ID       int64  `json:"id"`
	Language string `json:"language,omitempty"`
	Username string `json:"username,omitempty"`
}

// Button is an inline action attached to a broadcast message. Exactly one
// target applies per button; URL takes precedence when both are set.
type Button struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// Content is the language-keyed body of a broadcast campaign. Text lives in
// TextByLang keyed by language code; recipients whose language has no entry
// fall back to DefaultLanguage.
type Content struct {
	TextByLang      map[string]string `json:"text_by_lang"`
	DefaultLanguage string            `json:"default_language"`
	PhotoURL        string            `json:"photo_url,omitempty"`
	Buttons         []Button          `json:"buttons,omitempty"`
}

// TextFor resolves the message text for a recipient language, falling back to
// the default language and then to any available text.
func (c Content) TextFor(lang string) string {
	if text, ok := c.TextByLang[lang]; ok && text != "" {
		return text
	}
	if text, ok := c.TextByLang[c.DefaultLanguage]; ok && text != "" {
		return text
	}
	for _, text := range c.TextByLang {
		if text != "" {
			return text
		}
	}
	return ""
}

// Message is the resolved per-recipient payload handed to the delivery
// channel.
type Message struct {
	Text     string
	PhotoURL string
	Buttons  []Button
}

// Result tallies per-recipient outcomes of one fan-out execution. The counts
// always sum to Total, which equals the resolved audience size.
type Result struct {
	Sent        int `json:"sent"`
	Blocked     int `json:"blocked"`
	Deactivated int `json:"deactivated"`
	Failed      int `json:"failed"`
	Total       int `json:"total"`
}

// SendBroadcastPayload is the job payload for a full-audience broadcast.
type SendBroadcastPayload struct {
	BroadcastID string `json:"broadcast_id"`
}

// SendSegmentBroadcastPayload is the job payload for a broadcast restricted
// to one audience segment.
type SendSegmentBroadcastPayload struct {
	BroadcastID string `json:"broadcast_id"`
	Segment     string `json:"segment"`
}
