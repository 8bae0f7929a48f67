// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Usage is one VRAM reading in MiB.
type Usage struct {
	UsedMB  uint64
	TotalMB uint64
}

// Percent returns used/total in [0,1], or 0 when total is unknown.
func (u Usage) Percent() float64 {
	if u.TotalMB == 0 {
		return 0
	}
	p := float64(u.UsedMB) / float64(u.TotalMB)
	if p > 1 {
		return 1
	}
	return p
}

// Available reports whether the reading came from a real device.
func (u Usage) Available() bool {
	return u.TotalMB > 0
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

var nvidiaSmiArgs = []string{
	"--query-gpu=memory.used,memory.total",
	"--format=csv,noheader,nounits",
}

// VRAMProbe reports GPU memory usage via nvidia-smi.
type VRAMProbe struct {
	run     CommandRunner
	paths   []string
	timeout time.Duration
	limiter *rate.Limiter

	mu   sync.Mutex
	last Usage
}

// ProbeOption configures a VRAMProbe.
type ProbeOption func(*VRAMProbe)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r CommandRunner) ProbeOption {
	return func(p *VRAMProbe) { p.run = r }
}

// WithInterval sets the minimum time between nvidia-smi invocations.
// Zero disables limiting.
func WithInterval(d time.Duration) ProbeOption {
	return func(p *VRAMProbe) {
		if d <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		p.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewVRAMProbe creates a probe limited to one invocation per 2 seconds.
func NewVRAMProbe(opts ...ProbeOption) *VRAMProbe {
	p := &VRAMProbe{
		run:     execRunner,
		paths:   nvidiaSmiPaths(),
		timeout: 3 * time.Second,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Usage returns (used, total) in MiB, or (0, 0) if nothing can be read.
func (p *VRAMProbe) Usage(ctx context.Context) (used, total uint64) {
	u := p.Read(ctx)
	return u.UsedMB, u.TotalMB
}

// Read returns a fresh reading when the rate limit allows, otherwise the
// previous one.
func (p *VRAMProbe) Read(ctx context.Context) Usage {
	if !p.limiter.Allow() {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.last
	}

	u := p.query(ctx)

	p.mu.Lock()
	p.last = u
	p.mu.Unlock()
	return u
}

func (p *VRAMProbe) query(ctx context.Context) Usage {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	for _, path := range p.paths {
		out, err := p.run(ctx, path, nvidiaSmiArgs...)
		if err == nil {
			return ParseUsage(string(out))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return Usage{}
}

// ParseUsage parses the first line of
// `nvidia-smi --query-gpu=memory.used,memory.total --format=csv,noheader,nounits`.
// A line without exactly two fields yields a zero Usage; a field that is
// not a number reads as 0.
func ParseUsage(output string) Usage {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return Usage{}
	}
	used, _ := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	total, _ := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	return Usage{UsedMB: used, TotalMB: total}
}

// nvidiaSmiPaths returns possible paths for nvidia-smi based on OS.
func nvidiaSmiPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			"nvidia-smi",
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`,
		}
	}
	return []string{"nvidia-smi"}
}
