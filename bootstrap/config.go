package bootstrap

import (
	"github.com/kbukum/reactkit/config"
)

// Config is the constraint for application configuration types. Any struct
// embedding config.ServiceConfig by value satisfies it through promoted
// methods, config.Config included.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
