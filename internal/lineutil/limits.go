package lineutil

// LINE Messaging API limits, counted in runes.
// https://developers.line.biz/en/reference/messaging-api/
const (
	MaxTextMessageLength   = 5000
	MaxPostbackData        = 300
	MaxQuickReplyItemCount = 13
	MaxQuickReplyLabel     = 20
	MaxSenderName          = 20

	// MaxMessagesPerReply is how many messages one reply token accepts.
	MaxMessagesPerReply = 5
)
