package validation

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/reactkit/errors"
)

func TestValidatorRequired(t *testing.T) {
	if New().Required("name", "ticks").HasErrors() {
		t.Error("expected no errors for valid input")
	}
	if !New().Required("name", "").HasErrors() {
		t.Error("expected error for empty required field")
	}
	if !New().Required("name", "   ").HasErrors() {
		t.Error("expected error for whitespace-only required field")
	}
}

func TestValidatorNotNil(t *testing.T) {
	var fn func()
	var ptr *int
	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{"untyped nil", nil, true},
		{"nil func", fn, true},
		{"nil pointer", ptr, true},
		{"func", func() {}, false},
		{"int", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := New().NotNil("value", tc.value).HasErrors(); got != tc.wantErr {
				t.Errorf("NotNil(%v) error = %v, want %v", tc.value, got, tc.wantErr)
			}
		})
	}
}

func TestValidatorPositive(t *testing.T) {
	if New().Positive("interval", time.Second).HasErrors() {
		t.Error("expected no error for positive duration")
	}
	if !New().Positive("interval", 0).HasErrors() {
		t.Error("expected error for zero duration")
	}
	if !New().Positive("interval", -time.Second).HasErrors() {
		t.Error("expected error for negative duration")
	}
}

func TestValidatorCron(t *testing.T) {
	if New().Cron("cron", "*/5 * * * * * *").HasErrors() {
		t.Error("expected seven-field cron expression to be valid")
	}
	if !New().Cron("cron", "").HasErrors() {
		t.Error("expected error for empty expression")
	}
	if !New().Cron("cron", "not a cron").HasErrors() {
		t.Error("expected error for invalid expression")
	}
}

func TestValidatorRangeAndMin(t *testing.T) {
	if New().Range("workers", 4, 1, 64).HasErrors() {
		t.Error("expected no error in range")
	}
	if !New().Range("workers", 0, 1, 64).HasErrors() {
		t.Error("expected error below range")
	}
	if !New().Min("capacity", 0, 1).HasErrors() {
		t.Error("expected error below min")
	}
	if !New().MaxLength("name", strings.Repeat("x", 65), 64).HasErrors() {
		t.Error("expected error for long name")
	}
}

func TestValidatorOneOf(t *testing.T) {
	allowed := []string{"block", "drop_oldest", "drop_newest"}
	if New().OneOf("overflow", "block", allowed).HasErrors() {
		t.Error("expected no error for allowed value")
	}
	if !New().OneOf("overflow", "spill", allowed).HasErrors() {
		t.Error("expected error for disallowed value")
	}
	if New().OneOf("overflow", "", allowed).HasErrors() {
		t.Error("empty value is skipped")
	}
}

func TestValidatorValidate(t *testing.T) {
	v := New().NotNil("executor", nil).Positive("interval", 0)
	appErr := v.Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != errors.ErrCodeInvalidArgument {
		t.Errorf("expected INVALID_ARGUMENT, got %s", appErr.Code)
	}
	if !strings.Contains(appErr.Message, "executor") || !strings.Contains(appErr.Message, "interval") {
		t.Errorf("expected both fields in message, got %q", appErr.Message)
	}
	if fields, ok := appErr.Details["fields"].([]FieldError); !ok || len(fields) != 2 {
		t.Errorf("expected two field errors, got %v", appErr.Details["fields"])
	}
	if !stderrors.Is(v.Err(), errors.ErrInvalidArgument) {
		t.Error("expected Err to match ErrInvalidArgument")
	}
	if New().Err() != nil {
		t.Error("expected nil error for valid validator")
	}
}

func TestValidatorCustomAndChaining(t *testing.T) {
	v := New()
	result := v.Required("name", "ticks").Custom(true, "x", "never").Min("workers", 2, 1)
	if result != v {
		t.Error("expected chaining to return same validator")
	}
	if v.HasErrors() {
		t.Error("expected no errors for valid chained validation")
	}
	if !New().Custom(false, "x", "bad").HasErrors() {
		t.Error("expected custom failure")
	}
}

type scheduleInput struct {
	Kind     string        `mapstructure:"kind" validate:"oneof=none fixed_delay fixed_rate cron"`
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
	Cron     string        `mapstructure:"cron" validate:"required_if=Kind cron,cron"`
}

type streamInput struct {
	QueueCapacity int           `mapstructure:"queue_capacity" validate:"min=1"`
	Schedule      scheduleInput `mapstructure:"schedule"`
}

func TestStructValidateValid(t *testing.T) {
	in := streamInput{QueueCapacity: 4, Schedule: scheduleInput{Kind: "cron", Cron: "0 * * * * * *"}}
	if err := Validate(in); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	in = streamInput{QueueCapacity: 1, Schedule: scheduleInput{Kind: "fixed_rate", Interval: time.Second}}
	if err := Validate(in); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	in := streamInput{QueueCapacity: 0, Schedule: scheduleInput{Kind: "cron", Cron: "bogus"}}
	err := Validate(in)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "queue_capacity") {
		t.Errorf("expected error to mention queue_capacity, got %q", msg)
	}
	if !strings.Contains(msg, "schedule.cron") {
		t.Errorf("expected error to mention schedule.cron, got %q", msg)
	}
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT AppError, got %v", err)
	}
}

func TestStructValidateMissingCron(t *testing.T) {
	err := Validate(streamInput{QueueCapacity: 1, Schedule: scheduleInput{Kind: "cron"}})
	if err == nil || !strings.Contains(err.Error(), "is required") {
		t.Errorf("expected required cron error, got %v", err)
	}
}

func TestRequiredFunc(t *testing.T) {
	if err := Required("name", "value"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := Required("name", ""); err == nil {
		t.Error("expected error for empty required field")
	}
}
