package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/trimtrove/libs/config"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/booking"
)

type settings struct {
	Service         string
	Port            string
	DatabaseURL     string
	MigrateOnStart  bool
	JWTSecret       string
	KafkaBrokers    string
	RedisAddr       string
	RateLimitPerMin int
	RateLimitOpen   bool
	CORS            []string
	Booking         booking.Config
}

func loadSettings() (settings, error) {
	var s settings
	var err error

	s.Service = config.String("SERVICE_NAME", "booking-service")
	if s.Port, err = config.Port("PORT", "8083"); err != nil {
		return s, err
	}
	if s.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return s, err
	}
	if s.JWTSecret, err = config.RequiredString("JWT_SECRET"); err != nil {
		return s, err
	}
	s.MigrateOnStart = config.Bool("MIGRATE_ON_START", true)
	s.KafkaBrokers = config.String("KAFKA_BROKERS", "")
	s.RedisAddr = config.String("REDIS_ADDR", "")
	if s.RateLimitPerMin, err = config.Int("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return s, err
	}
	s.RateLimitOpen = config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	s.CORS = parseList(config.String("CORS_ALLOWED_ORIGINS", ""))

	step, err := config.Int("SLOT_STEP_MINUTES", 30)
	if err != nil {
		return s, err
	}
	horizon, err := config.Int("BOOKING_HORIZON_DAYS", 30)
	if err != nil {
		return s, err
	}
	loc, err := time.LoadLocation(config.String("SCHEDULE_TIMEZONE", "UTC"))
	if err != nil {
		return s, fmt.Errorf("SCHEDULE_TIMEZONE: %w", err)
	}
	s.Booking = booking.Config{
		Step:        time.Duration(step) * time.Minute,
		HorizonDays: horizon,
		Strict:      config.Bool("STRICT_TRANSITIONS", false),
		Location:    loc,
	}
	return s, nil
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
