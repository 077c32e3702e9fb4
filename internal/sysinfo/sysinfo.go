// Package sysinfo reports host metrics for the status API.
// Room clients usually run on small single-board machines, so the snapshot
// includes the Raspberry Pi model when one can be detected.
package sysinfo

import (
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a point-in-time view of the host.
type Snapshot struct {
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	Arch          string  `json:"arch"`
	CPUCores      int     `json:"cpu_cores"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	MemoryUsedPct float64 `json:"memory_used_pct"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
	PiModel       string  `json:"pi_model,omitempty"`
}

// Collect gathers a snapshot. Individual probe failures leave the
// corresponding field at its zero value rather than failing the whole call;
// the status endpoint should never go dark because one counter is missing.
func Collect() Snapshot {
	s := Snapshot{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		CPUCores: runtime.NumCPU(),
	}

	if name, err := os.Hostname(); err == nil {
		s.Hostname = name
	}
	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		s.CPUPercent = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemoryTotalMB = vm.Total / 1024 / 1024
		s.MemoryUsedPct = vm.UsedPercent
	}
	if up, err := host.Uptime(); err == nil {
		s.UptimeSeconds = up
	}
	s.PiModel = piModel()

	return s
}

// piModel returns the Raspberry Pi model string, or "" off-Pi.
func piModel() string {
	if runtime.GOOS != "linux" {
		return ""
	}
	data, err := os.ReadFile("/proc/device-tree/model")
	if err == nil {
		model := strings.TrimRight(string(data), "\x00\n ")
		if strings.Contains(model, "Raspberry Pi") {
			return model
		}
	}
	data, err = os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Model") && strings.Contains(line, "Raspberry Pi") {
			if _, after, found := strings.Cut(line, ":"); found {
				return strings.TrimSpace(after)
			}
		}
	}
	return ""
}
