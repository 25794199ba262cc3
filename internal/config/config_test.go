package config

import "testing"

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("defaults should validate cleanly: %v", err)
	}
}

func TestValidateRejectsZeroN1Max(t *testing.T) {
	cfg := Defaults()
	cfg.Producer.N1Max = 0
	if err := Validate(&cfg); err == nil {
		t.Fatalf("expected validation error for n1_max=0")
	}
}

func TestValidateRejectsBadAlarmSink(t *testing.T) {
	cfg := Defaults()
	cfg.Alarm.Sink = "carrier-pigeon"
	if err := Validate(&cfg); err == nil {
		t.Fatalf("expected validation error for unknown alarm sink")
	}
}

func TestValidateRequiresRedisAddrWhenSinkIsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Alarm.Sink = "redis"
	if err := Validate(&cfg); err == nil {
		t.Fatalf("expected validation error for missing redis_addr")
	}
	cfg.Alarm.RedisAddr = "localhost:6379"
	if err := Validate(&cfg); err != nil {
		t.Fatalf("expected valid config with redis_addr set: %v", err)
	}
}

func TestValidateRequiresIncreasingRiskThresholds(t *testing.T) {
	cfg := Defaults()
	cfg.Risk.ThresholdWatched = 0.9
	if err := Validate(&cfg); err == nil {
		t.Fatalf("expected validation error for non-increasing risk thresholds")
	}
}

func TestValidateRequiresConnStringForPostgres(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Backend = "postgres"
	if err := Validate(&cfg); err == nil {
		t.Fatalf("expected validation error for missing conn_string")
	}
	cfg.Storage.ConnString = "postgres://localhost/fraud"
	if err := Validate(&cfg); err != nil {
		t.Fatalf("expected valid config with conn_string set: %v", err)
	}
}

func TestValidateRejectsUnknownStorageBackend(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Backend = "tape-drive"
	if err := Validate(&cfg); err == nil {
		t.Fatalf("expected validation error for unknown storage backend")
	}
}
