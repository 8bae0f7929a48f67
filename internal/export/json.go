// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/morganforge/theseus/internal/model"
)

// JSONExporter writes the history exactly as the session store does, so
// an export can be copied into the sessions directory and loaded.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter. Options only affect the
// file name.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(h *model.History) ([]byte, error) {
	if err := validate(h); err != nil {
		return nil, err
	}
	return json.MarshalIndent(h, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
