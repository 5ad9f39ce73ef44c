package config

import (
	"fmt"
	"os"
	"strconv"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

// MPESA_TIMESTAMP_FORMAT is the Daraja API timestamp layout (YYYYMMDDHHmmss).
const MPESA_TIMESTAMP_FORMAT = "20060102150405"

func AppBaseURL() string {
	base := os.Getenv("APP_BASE_URL")
	if base == "" {
		base = "http://localhost:3000"
	}
	return base
}

// UsdToKesRate returns the configured USD→KES exchange rate used when a
// ticket is priced in USD but settled through M-Pesa.
func UsdToKesRate() float64 {
	rate, err := strconv.ParseFloat(os.Getenv("USD_TO_KES_RATE"), 64)
	if err != nil || rate <= 0 {
		return 130
	}
	return rate
}

// TicketExpiryHours is the TTL for the optional PENDING-ticket expiry sweep.
// Zero disables the sweep and PENDING tickets stay retryable forever.
func TicketExpiryHours() int {
	hours, err := strconv.Atoi(os.Getenv("TICKET_EXPIRY_HOURS"))
	if err != nil || hours < 0 {
		return 0
	}
	return hours
}

// WebhookStrictErrors controls whether provider-facing endpoints surface
// processing failures as provider-visible errors. Off by default so that
// providers do not retry deliveries we cannot fix.
func WebhookStrictErrors() bool {
	strict, err := strconv.ParseBool(os.Getenv("WEBHOOK_STRICT_ERRORS"))
	if err != nil {
		return false
	}
	return strict
}
