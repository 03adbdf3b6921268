// Package id generates run identifiers for the batch jobs.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Run id prefixes, one per job.
const (
	PrefixDedup     = "dedup"
	PrefixDiscovery = "claims"
	PrefixReindex   = "reindex"
)

// runIDLength is shorter than the NanoID default; run ids only need to be
// unique among a deployment's job history.
const runIDLength = 12

// Generate returns prefix-nanoid, e.g. "dedup-V1StGXR8_Z5j".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New(runIDLength)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Prefix returns the job prefix of a run id, or "" when id has none.
func Prefix(id string) string {
	prefix, _, ok := strings.Cut(id, "-")
	if !ok {
		return ""
	}
	return prefix
}
