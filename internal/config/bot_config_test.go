package config

import (
	"testing"
	"time"
)

func TestBotConfigValidate(t *testing.T) {
	t.Parallel()
	valid := BotConfig{
		WebhookTimeout:            time.Minute,
		MaxEventsPerWebhook:       100,
		MaxMessageLength:          LINEMaxIncomingTextLength,
		UserRateLimitBurst:        10,
		UserRateLimitRefillPerSec: 0.2,
		LLMBurstTokens:            30,
		LLMRefillPerHour:          20,
		LLMDailyLimit:             150,
		APIRateLimitBurst:         20,
		APIRateLimitRefillPerSec:  0.5,
	}

	tests := []struct {
		name    string
		mutate  func(*BotConfig)
		wantErr bool
	}{
		{"valid", func(*BotConfig) {}, false},
		{"daily limit disabled", func(c *BotConfig) { c.LLMDailyLimit = 0 }, false},
		{"zero webhook timeout", func(c *BotConfig) { c.WebhookTimeout = 0 }, true},
		{"no events", func(c *BotConfig) { c.MaxEventsPerWebhook = 0 }, true},
		{"zero burst", func(c *BotConfig) { c.UserRateLimitBurst = 0 }, true},
		{"negative LLM refill", func(c *BotConfig) { c.LLMRefillPerHour = -1 }, true},
		{"negative daily", func(c *BotConfig) { c.LLMDailyLimit = -1 }, true},
		{"zero API refill", func(c *BotConfig) { c.APIRateLimitRefillPerSec = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
