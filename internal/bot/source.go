package bot

import "github.com/line/line-bot-sdk-go/v8/linebot/webhook"

// GetChatID returns the conversation a source belongs to: the user for 1:1
// chats, otherwise the group or room. Unknown sources yield "".
func GetChatID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.GroupId
	case webhook.RoomSource:
		return s.RoomId
	}
	return ""
}

// GetUserID returns the sender's user id, which may be empty in groups
// when the user has not consented to sharing it.
func GetUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}

// IsPersonalChat reports whether source is a 1:1 chat.
func IsPersonalChat(source webhook.SourceInterface) bool {
	_, ok := source.(webhook.UserSource)
	return ok
}

// SessionID maps a LINE chat to its conversation session.
func SessionID(chatID string) string {
	return "line:" + chatID
}
