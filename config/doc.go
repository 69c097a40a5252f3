// Package config loads reactkit configuration from config.yml, .env files and
// environment variables using Viper.
//
// # Usage
//
//	cfg, err := config.Load("reactd")
//
// Environment variables override file values using underscore-separated
// paths (e.g., EXECUTOR_WORKERS, STREAM_QUEUE_CAPACITY).
package config
