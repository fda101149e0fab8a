package webhook

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Messenger sends replies to LINE.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, messages []messaging_api.MessageInterface) error
	ShowLoading(ctx context.Context, chatID string, seconds int32) error
}

// LineMessenger sends through the Messaging API.
type LineMessenger struct {
	client *messaging_api.MessagingApiAPI
}

// NewLineMessenger creates a Messenger for the channel access token.
func NewLineMessenger(channelToken string) (*LineMessenger, error) {
	client, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}
	return &LineMessenger{client: client}, nil
}

func (m *LineMessenger) Reply(_ context.Context, replyToken string, messages []messaging_api.MessageInterface) error {
	_, err := m.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	return err
}

// ShowLoading shows the typing indicator. LINE accepts 5 to 60 seconds in
// steps of 5.
func (m *LineMessenger) ShowLoading(_ context.Context, chatID string, seconds int32) error {
	_, err := m.client.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         chatID,
		LoadingSeconds: seconds,
	})
	return err
}
