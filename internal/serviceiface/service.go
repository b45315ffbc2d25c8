// Package serviceiface is the lifecycle contract the app manager drives.
package serviceiface

// Service is a long-running component started and stopped in the order
// given by services.yaml. Start must not block.
type Service interface {
	Name() string
	Start() error
	Stop() error
}
