// Package testinfra starts throwaway MySQL servers for integration tests.
//
// Everything here is behind the "integration" build tag:
//
//	go test -tags integration ./...
//
// Tests skip themselves when Docker is unavailable.
package testinfra
