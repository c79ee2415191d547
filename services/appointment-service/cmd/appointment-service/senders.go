package main

import (
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/homelube/libs/config"
	"github.com/md-rashed-zaman/homelube/libs/httpx"
	"github.com/md-rashed-zaman/homelube/libs/runtime"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/email"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/sms"
	"github.com/redis/go-redis/v9"
)

func newSmsSender(logger *slog.Logger) sms.Sender {
	switch provider := strings.ToLower(config.String("SMS_PROVIDER", "vonage")); provider {
	case "vonage":
		cfg := sms.VonageConfig{
			APIKey:    config.String("VONAGE_API_KEY", ""),
			APISecret: config.String("VONAGE_API_SECRET", ""),
			From:      config.String("VONAGE_PHONE_NUMBER", ""),
			BaseURL:   config.String("VONAGE_BASE_URL", ""),
		}
		if cfg.APIKey == "" || cfg.APISecret == "" || cfg.From == "" {
			logger.Warn("vonage credentials missing; sms disabled")
			return sms.NewNoopSender()
		}
		return sms.NewVonageSender(cfg)
	case "webhook":
		return sms.NewWebhookSender(config.String("SMS_WEBHOOK_URL", ""), config.String("SMS_WEBHOOK_TOKEN", ""))
	case "noop":
		return sms.NewNoopSender()
	default:
		logger.Warn("unknown SMS_PROVIDER; sms disabled", "provider", provider)
		return sms.NewNoopSender()
	}
}

func newEmailSender(logger *slog.Logger) email.Sender {
	host := config.String("SMTP_HOST", "")
	if host == "" {
		logger.Warn("SMTP_HOST not set; email disabled")
		return email.NewDisabledSender()
	}
	return email.NewSMTPSender(email.SMTPConfig{
		Host:       host,
		Port:       config.Int("SMTP_PORT", 587),
		Username:   config.String("SMTP_USER", ""),
		Password:   config.String("SMTP_PASS", ""),
		From:       config.String("SMTP_FROM", "no-reply@homelube.local"),
		TLS:        config.String("SMTP_TLS", "opportunistic"),
		PreviewURL: config.String("SMTP_PREVIEW_URL", ""),
	})
}

type rateLimiters struct {
	booking httpx.Middleware
	webhook httpx.Middleware
	ready   *runtime.ReadyCheck
}

// newRateLimiters prefers a shared Redis budget and falls back to a
// per-process token bucket. Booking and webhook traffic are counted apart so a
// burst of provider callbacks never locks customers out of booking.
func newRateLimiters(logger *slog.Logger) rateLimiters {
	bookingLimit := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	webhookLimit := config.Int("WEBHOOK_RATE_LIMIT_PER_MINUTE", bookingLimit)
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return rateLimiters{
			booking: httpx.NewRateLimiter(bookingLimit, time.Minute).Middleware(),
			webhook: httpx.NewRateLimiter(webhookLimit, time.Minute).Middleware(),
		}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	rl := httpx.NewRedisRateLimiter(rdb, bookingLimit, time.Minute, "homelube:rl")
	failOpen := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	return rateLimiters{
		booking: rl.Scoped("booking", bookingLimit).Middleware(logger, failOpen),
		webhook: rl.Scoped("webhook", webhookLimit).Middleware(logger, failOpen),
		ready:   &runtime.ReadyCheck{Name: "redis", Check: rl.ReadyCheck()},
	}
}
