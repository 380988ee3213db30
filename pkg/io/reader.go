// Package io provides input utilities for flow record ingestion.
package io

import (
	"path/filepath"
	"strings"

	"github.com/hed1ad/synguard/pkg/flow"
	"github.com/hed1ad/synguard/pkg/io/dump"
	"github.com/hed1ad/synguard/pkg/io/pcap"
)

// Reader is the interface for reading flow records from various sources.
type Reader interface {
	// Read returns the complete dataset in source order.
	Read() ([]flow.Record, error)

	// Close releases resources.
	Close() error
}

// Open returns a reader for the given file. Files ending in .pcap are decoded
// as packet captures; anything else is treated as a whitespace-delimited dump.
func Open(filename string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pcap", ".cap":
		return pcap.NewFileReader(filename)
	default:
		return dump.NewReader(filename)
	}
}

// ReadAll opens filename, reads every record and closes the source.
func ReadAll(filename string) ([]flow.Record, error) {
	r, err := Open(filename)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.Read()
}
