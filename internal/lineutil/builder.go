// Package lineutil builds LINE messages for the chat surface and keeps them
// inside the Messaging API limits.
package lineutil

import (
	"strings"
	"unicode/utf8"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// QuickReplyItem represents an item in a quick reply.
type QuickReplyItem struct {
	ImageURL string
	Action   messaging_api.ActionInterface
}

// Action is an alias for the LINE SDK action interface for convenience.
type Action = messaging_api.ActionInterface

// NewTextMessage creates a text message, truncated to the LINE limit.
func NewTextMessage(text string) *messaging_api.TextMessage {
	return &messaging_api.TextMessage{Text: TruncateRunes(text, MaxTextMessageLength)}
}

// NewTextMessageWithQuickReply attaches quick reply items to a text message.
func NewTextMessageWithQuickReply(text string, sender *messaging_api.Sender, items ...QuickReplyItem) *messaging_api.TextMessage {
	msg := NewTextMessage(text)
	msg.Sender = sender
	if len(items) > 0 {
		msg.QuickReply = NewQuickReply(items)
	}
	return msg
}

// NewSender returns the avatar shown on replies. An empty name yields nil,
// which keeps the channel's default profile.
func NewSender(name, iconURL string) *messaging_api.Sender {
	if name == "" {
		return nil
	}
	return &messaging_api.Sender{
		Name:    TruncateRunes(name, MaxSenderName),
		IconUrl: iconURL,
	}
}

// NewQuickReply creates a quick reply with at most 13 items.
func NewQuickReply(items []QuickReplyItem) *messaging_api.QuickReply {
	if len(items) > MaxQuickReplyItemCount {
		items = items[:MaxQuickReplyItemCount]
	}
	out := make([]messaging_api.QuickReplyItem, len(items))
	for i, item := range items {
		out[i] = messaging_api.QuickReplyItem{Action: item.Action}
		if item.ImageURL != "" {
			out[i].ImageUrl = item.ImageURL
		}
	}
	return &messaging_api.QuickReply{Items: out}
}

// NewPostbackAction creates a postback button. The label is cut to the quick
// reply limit; displayText is echoed into the chat as if the user typed it.
func NewPostbackAction(label, displayText, data string) Action {
	return &messaging_api.PostbackAction{
		Label:       TruncateRunes(label, MaxQuickReplyLabel),
		DisplayText: TruncateRunes(displayText, MaxTextMessageLength),
		Data:        data,
	}
}

// NewMessageAction creates a button that sends text as the user.
func NewMessageAction(label, text string) Action {
	return &messaging_api.MessageAction{
		Label: TruncateRunes(label, MaxQuickReplyLabel),
		Text:  text,
	}
}

// TruncateRunes cuts s to at most limit runes, ending with "..." when cut.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-3]) + "..."
}

// PlainText drops the markdown emphasis the composer emits, which LINE
// would otherwise show literally.
func PlainText(s string) string {
	return strings.ReplaceAll(s, "**", "")
}

// SplitText breaks text into chunks of at most limit runes, preferring
// paragraph and then line boundaries.
func SplitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = MaxTextMessageLength
	}

	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		head := string(runes[:limit])
		cut := strings.LastIndex(head, "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(head, "\n")
		}
		if cut <= 0 {
			cut = strings.LastIndex(head, " ")
		}
		if cut <= 0 {
			cut = len(head)
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// LimitMessages keeps the first MaxMessagesPerReply messages. When it has to
// cut, the quick reply on the last dropped text message moves to the last
// kept one so the user can still answer.
func LimitMessages(msgs []messaging_api.MessageInterface) []messaging_api.MessageInterface {
	if len(msgs) <= MaxMessagesPerReply {
		return msgs
	}
	kept := msgs[:MaxMessagesPerReply]
	var qr *messaging_api.QuickReply
	for _, m := range msgs[MaxMessagesPerReply:] {
		if tm, ok := m.(*messaging_api.TextMessage); ok && tm.QuickReply != nil {
			qr = tm.QuickReply
		}
	}
	if qr != nil {
		if tm, ok := kept[len(kept)-1].(*messaging_api.TextMessage); ok {
			tm.QuickReply = qr
		}
	}
	return kept
}
