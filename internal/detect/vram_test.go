// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseUsage(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Usage
	}{
		{"single gpu", "4096, 16303\n", Usage{4096, 16303}},
		{"no spaces", "12,24576", Usage{12, 24576}},
		{"multi gpu uses first line", "100, 8192\n200, 8192\n", Usage{100, 8192}},
		{"empty", "", Usage{}},
		{"too many fields", "1, 2, 3", Usage{}},
		{"not supported", "[N/A], 8192", Usage{0, 8192}},
		{"driver error text", "NVIDIA-SMI has failed because it couldn't communicate with the NVIDIA driver.", Usage{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseUsage(tc.output); got != tc.want {
				t.Errorf("ParseUsage(%q) = %+v, want %+v", tc.output, got, tc.want)
			}
		})
	}
}

func TestUsage_Percent(t *testing.T) {
	tests := []struct {
		u    Usage
		want float64
	}{
		{Usage{0, 0}, 0},
		{Usage{4096, 16384}, 0.25},
		{Usage{20000, 16384}, 1},
	}
	for _, tc := range tests {
		if got := tc.u.Percent(); got != tc.want {
			t.Errorf("%+v.Percent() = %v, want %v", tc.u, got, tc.want)
		}
	}
	if (Usage{}).Available() {
		t.Error("zero Usage reports Available")
	}
}

func TestVRAMProbe_Usage(t *testing.T) {
	var gotArgs []string
	p := NewVRAMProbe(WithInterval(0), WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("5120, 16384\n"), nil
	}))

	used, total := p.Usage(context.Background())
	if used != 5120 || total != 16384 {
		t.Errorf("Usage() = (%d, %d), want (5120, 16384)", used, total)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "--query-gpu=memory.used,memory.total" || gotArgs[1] != "--format=csv,noheader,nounits" {
		t.Errorf("nvidia-smi args = %v", gotArgs)
	}
}

func TestVRAMProbe_FailureDegradesToZero(t *testing.T) {
	p := NewVRAMProbe(WithInterval(0), WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("executable file not found in $PATH")
	}))

	used, total := p.Usage(context.Background())
	if used != 0 || total != 0 {
		t.Errorf("Usage() = (%d, %d), want (0, 0)", used, total)
	}
}

func TestVRAMProbe_RateLimited(t *testing.T) {
	calls := 0
	p := NewVRAMProbe(WithInterval(time.Hour), WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		calls++
		return []byte("1000, 8000"), nil
	}))

	for i := 0; i < 5; i++ {
		used, total := p.Usage(context.Background())
		if used != 1000 || total != 8000 {
			t.Fatalf("call %d: Usage() = (%d, %d), want cached (1000, 8000)", i, used, total)
		}
	}
	if calls != 1 {
		t.Errorf("nvidia-smi ran %d times, want 1", calls)
	}
}
