package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// 초기화 전에는 아무것도 출력하지 않음 (테스트에서 별도 설정 불필요)
var zlog = zerolog.Nop()

// InitStructured initializes the structured zerolog logger
func InitStructured(env string) {
	var w io.Writer

	if env == "development" || env == "dev" {
		// Pretty console output for development
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	} else {
		// JSON output for production (machine-readable)
		w = os.Stdout
	}

	zlog = zerolog.New(w).With().
		Timestamp().
		Str("service", "campaign-chronicle").
		Logger()

	zerolog.TimeFieldFormat = time.RFC3339
}

// GetLogger returns the global zerolog logger
func GetLogger() *zerolog.Logger {
	return &zlog
}

// WithRequestID returns a logger with request_id field
func WithRequestID(requestID string) zerolog.Logger {
	return zlog.With().Str("request_id", requestID).Logger()
}

// WithCampaignID returns a logger with campaign_id field
func WithCampaignID(campaignID string) zerolog.Logger {
	return zlog.With().Str("campaign_id", campaignID).Logger()
}
