// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"strings"

	"github.com/flowhire/flowhire/pkg/persistence"
	"github.com/flowhire/flowhire/pkg/persistence/memory"
)

var supportedPersistenceProviders = []string{"memory"}

// NewPersistence creates a store from a database URL. Only the in-memory
// store ships here; SQL-backed stores plug in behind the same interface.
func NewPersistence(databaseURL string) persistence.Persistence {
	provider := parsePersistenceProvider(databaseURL)

	switch provider {
	default:
		return memory.NewPersistence()
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, _ := strings.Cut(databaseURL, "://")

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "memory"
}
