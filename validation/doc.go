// Package validation provides input validation for reactkit configuration
// and constructor arguments.
//
// It supports struct tag validation (using the validator library, with an
// extra "cron" tag) and programmatic validation with error collection.
//
// # Struct Tag Validation
//
//	type ScheduleConfig struct {
//	    Kind string `validate:"oneof=none fixed_delay fixed_rate cron"`
//	    Cron string `validate:"required_if=Kind cron,cron"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	err := validation.New().NotNil("executor", exec).Positive("interval", d).Err()
package validation
