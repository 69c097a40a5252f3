// Package version reports the build version of reactd.
//
// Values are linked at build time:
//
//	go build -ldflags "-X github.com/kbukum/reactkit/version.Version=1.0.0" ./cmd/reactd
package version
