// Package sysinfo collects host information for the admin dashboard.
package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info is a snapshot of the host running the server.
type Info struct {
	Hostname   string
	Platform   string
	BootTime   time.Time
	GoVersion  string
	CPUs       int
	CPUPercent float64

	MemoryUsed  uint64
	MemoryTotal uint64

	DiskPath  string
	DiskUsed  uint64
	DiskTotal uint64
}

// Collect gathers host information. diskPath selects the filesystem whose usage is
// reported. Sources that fail are logged and left zero; an error is only returned
// when nothing could be collected.
func Collect(ctx context.Context, diskPath string) (*Info, error) {
	if diskPath == "" {
		diskPath = "/"
	}
	info := &Info{
		GoVersion: runtime.Version(),
		DiskPath:  diskPath,
	}
	var errs []error

	if h, err := host.InfoWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("host: %w", err))
	} else {
		info.Hostname = h.Hostname
		info.Platform = fmt.Sprintf("%s %s (%s)", h.Platform, h.PlatformVersion, h.KernelArch)
		if boot, err := safecast.ToInt64(h.BootTime); err == nil {
			info.BootTime = time.Unix(boot, 0)
		}
	}

	if n, err := cpu.CountsWithContext(ctx, true); err != nil {
		errs = append(errs, fmt.Errorf("cpu count: %w", err))
	} else {
		info.CPUs = n
	}

	// zero interval compares against the previous call
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		errs = append(errs, fmt.Errorf("cpu percent: %w", err))
	} else if len(pct) > 0 {
		info.CPUPercent = pct[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	} else {
		info.MemoryUsed = vm.Used
		info.MemoryTotal = vm.Total
	}

	if usage, err := disk.UsageWithContext(ctx, diskPath); err != nil {
		errs = append(errs, fmt.Errorf("disk %s: %w", diskPath, err))
	} else {
		info.DiskUsed = usage.Used
		info.DiskTotal = usage.Total
	}

	if len(errs) == 5 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		log.Warn("failed to collect host information", "error", err)
	}
	return info, nil
}
