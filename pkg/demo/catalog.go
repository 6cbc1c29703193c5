package demo

import (
	"sort"
	"strings"
)

// Package is one searchable catalog entry.
type Package struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// Catalog is a small read-only package index backing the search command.
type Catalog struct {
	packages []Package
}

// NewCatalog copies packages and sorts them by name.
func NewCatalog(packages []Package) *Catalog {
	sorted := make([]Package, len(packages))
	copy(sorted, packages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	return &Catalog{packages: sorted}
}

// DefaultCatalog lists the libraries this service is built on.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Package{
		{Name: "cobra", Path: "github.com/spf13/cobra", Description: "Commander for modern Go CLI interactions"},
		{Name: "envconfig", Path: "github.com/kelseyhightower/envconfig", Description: "Populate structs from environment variables"},
		{Name: "lipgloss", Path: "github.com/charmbracelet/lipgloss", Description: "Style definitions for nice terminal layouts"},
		{Name: "log", Path: "github.com/charmbracelet/log", Description: "A minimal, colorful Go logging library"},
		{Name: "nats.go", Path: "github.com/nats-io/nats.go", Description: "Go client for the NATS messaging system"},
		{Name: "nats-server", Path: "github.com/nats-io/nats-server/v2", Description: "High-performance server for NATS"},
		{Name: "telego", Path: "github.com/mymmrac/telego", Description: "Telegram Bot API library for Go"},
		{Name: "testify", Path: "github.com/stretchr/testify", Description: "Toolkit with common assertions and mocks"},
		{Name: "uuid", Path: "github.com/google/uuid", Description: "Generate and inspect UUIDs based on RFC 9562"},
	})
}

// Search returns at most count matches for text, skipping the first skip.
// An empty text matches everything.
func (c *Catalog) Search(text string, skip, count int) []Package {
	needle := strings.ToLower(strings.TrimSpace(text))

	matches := make([]Package, 0, len(c.packages))
	for _, pkg := range c.packages {
		if needle == "" ||
			strings.Contains(strings.ToLower(pkg.Name), needle) ||
			strings.Contains(strings.ToLower(pkg.Description), needle) {
			matches = append(matches, pkg)
		}
	}

	if skip < 0 {
		skip = 0
	}
	if skip >= len(matches) {
		return nil
	}
	matches = matches[skip:]

	if count > 0 && count < len(matches) {
		matches = matches[:count]
	}

	return matches
}

// Lookup finds a package by its import path.
func (c *Catalog) Lookup(path string) (Package, bool) {
	path = strings.TrimSuffix(strings.TrimSpace(path), "/")
	for _, pkg := range c.packages {
		if pkg.Path == path {
			return pkg, true
		}
	}

	return Package{}, false
}
