package config

import (
	"errors"
	"fmt"
	"time"
)

// LINE Messaging API limits.
// https://developers.line.biz/en/reference/messaging-api/
const (
	LINEMaxMessagesPerReply   = 5
	LINEMaxTextMessageLength  = 5000
	LINEMaxIncomingTextLength = 20000
	LINEMaxPostbackDataLength = 300
	LINEMaxQuickReplyItems    = 13
)

// BotConfig holds LINE channel behavior and rate limiting settings.
type BotConfig struct {
	WebhookTimeout      time.Duration
	MaxEventsPerWebhook int
	MaxMessageLength    int // incoming text longer than this is rejected

	// Display name and avatar on replies; empty keeps the channel's own.
	SenderName    string
	SenderIconURL string

	// Per-user token bucket
	UserRateLimitBurst        float64
	UserRateLimitRefillPerSec float64

	// Per-user LLM budget (hourly refill plus daily cap)
	LLMBurstTokens   float64
	LLMRefillPerHour float64
	LLMDailyLimit    int // 0 = disabled

	// Per-IP token bucket for the JSON and websocket API
	APIRateLimitBurst        float64
	APIRateLimitRefillPerSec float64
}

// LoadBotConfig reads bot settings from the environment with defaults.
func LoadBotConfig() BotConfig {
	return BotConfig{
		WebhookTimeout:            getDurationEnv(EnvWebhookTimeout, WebhookProcessing),
		MaxEventsPerWebhook:       100,
		MaxMessageLength:          LINEMaxIncomingTextLength,
		SenderName:                getEnv(EnvLineSenderName, ""),
		SenderIconURL:             getEnv(EnvLineSenderIcon, ""),
		UserRateLimitBurst:        getFloatEnv(EnvUserRateBurst, 10),
		UserRateLimitRefillPerSec: getFloatEnv(EnvUserRateRefill, 0.2), // 1 per 5s
		LLMBurstTokens:            getFloatEnv(EnvLLMRateBurst, 30),
		LLMRefillPerHour:          getFloatEnv(EnvLLMRateRefill, 20),
		LLMDailyLimit:             getIntEnv(EnvLLMRateDaily, 150),
		APIRateLimitBurst:         getFloatEnv(EnvAPIRateBurst, 20),
		APIRateLimitRefillPerSec:  getFloatEnv(EnvAPIRateRefill, 0.5),
	}
}

// Validate checks if the configuration is valid.
func (c BotConfig) Validate() error {
	var errs []error
	if c.WebhookTimeout <= 0 {
		errs = append(errs, fmt.Errorf("webhook timeout must be positive, got %v", c.WebhookTimeout))
	}
	if c.MaxEventsPerWebhook < 1 {
		errs = append(errs, fmt.Errorf("max events per webhook must be positive, got %d", c.MaxEventsPerWebhook))
	}
	if c.MaxMessageLength < 1 {
		errs = append(errs, fmt.Errorf("max message length must be positive, got %d", c.MaxMessageLength))
	}
	if c.UserRateLimitBurst <= 0 || c.UserRateLimitRefillPerSec <= 0 {
		errs = append(errs, errors.New("user rate limit burst and refill must be positive"))
	}
	if c.LLMBurstTokens <= 0 || c.LLMRefillPerHour <= 0 {
		errs = append(errs, errors.New("LLM rate limit burst and refill must be positive"))
	}
	if c.APIRateLimitBurst <= 0 || c.APIRateLimitRefillPerSec <= 0 {
		errs = append(errs, errors.New("API rate limit burst and refill must be positive"))
	}
	if c.LLMDailyLimit < 0 {
		errs = append(errs, fmt.Errorf("LLM daily limit cannot be negative, got %d", c.LLMDailyLimit))
	}
	return errors.Join(errs...)
}
