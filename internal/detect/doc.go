// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect probes accelerator memory usage.
//
// VRAMProbe shells out to nvidia-smi and reports used and total memory
// in MiB. The probe is best-effort: any failure (no driver, no GPU,
// unparsable output, timeout) reports (0, 0). Calls are rate limited so
// a UI polling every tick does not spawn a process each time; between
// permitted calls the last reading is returned.
package detect
