// Package collector reads the host-wide aggregates Machine.Scan needs each
// tick: total and per-CPU /proc/stat ticks, /proc/loadavg, and the subset of
// /proc/meminfo spec.md §6 lists as part of the per-host sample record.
// Per-process sampling lives in process.Source; this package only ever
// reads host-global files, never /proc/<pid>/*.
package collector

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gopherlabs/ptop/model"
	"github.com/gopherlabs/ptop/util"
)

// HostReader reads host-wide CPU and memory aggregates from procfs. Root
// defaults to "/proc"; overridable so tests can point it at a fixture
// directory instead of the real procfs, matching process.LinuxSource's
// ProcRoot convention.
type HostReader struct {
	Root string
}

// NewHostReader returns a HostReader rooted at the real /proc.
func NewHostReader() *HostReader {
	return &HostReader{Root: "/proc"}
}

func (r *HostReader) root() string {
	if r.Root == "" {
		return "/proc"
	}
	return r.Root
}

// ReadCPU reads /proc/stat and /proc/loadavg into a model.CPUMetrics.
func (r *HostReader) ReadCPU() (model.CPUMetrics, error) {
	var cpu model.CPUMetrics

	lines, err := util.ReadFileLines(filepath.Join(r.root(), "stat"))
	if err != nil {
		return cpu, fmt.Errorf("read /proc/stat: %w", err)
	}

	var perCPU []model.CPUTimes
	for _, line := range lines {
		if strings.HasPrefix(line, "cpu ") {
			cpu.Total = parseCPULine(line)
		} else if strings.HasPrefix(line, "cpu") {
			perCPU = append(perCPU, parseCPULine(line))
		}
	}
	cpu.PerCPU = perCPU
	cpu.NumCPUs = len(perCPU)

	if err := r.readLoadAvg(&cpu.LoadAvg); err != nil {
		return cpu, err
	}
	return cpu, nil
}

func parseCPULine(line string) model.CPUTimes {
	fields := strings.Fields(line)
	// fields[0] = "cpu" or "cpu0", fields[1..] = user nice system idle iowait irq softirq steal guest guest_nice
	var ct model.CPUTimes
	if len(fields) >= 2 {
		ct.User = util.ParseUint64(fields[1])
	}
	if len(fields) >= 3 {
		ct.Nice = util.ParseUint64(fields[2])
	}
	if len(fields) >= 4 {
		ct.System = util.ParseUint64(fields[3])
	}
	if len(fields) >= 5 {
		ct.Idle = util.ParseUint64(fields[4])
	}
	if len(fields) >= 6 {
		ct.IOWait = util.ParseUint64(fields[5])
	}
	if len(fields) >= 7 {
		ct.IRQ = util.ParseUint64(fields[6])
	}
	if len(fields) >= 8 {
		ct.SoftIRQ = util.ParseUint64(fields[7])
	}
	if len(fields) >= 9 {
		ct.Steal = util.ParseUint64(fields[8])
	}
	if len(fields) >= 10 {
		ct.Guest = util.ParseUint64(fields[9])
	}
	if len(fields) >= 11 {
		ct.GuestNice = util.ParseUint64(fields[10])
	}
	return ct
}

func (r *HostReader) readLoadAvg(la *model.LoadAvg) error {
	content, err := util.ReadFileString(filepath.Join(r.root(), "loadavg"))
	if err != nil {
		return fmt.Errorf("read /proc/loadavg: %w", err)
	}
	fields := strings.Fields(content)
	if len(fields) < 5 {
		return fmt.Errorf("unexpected /proc/loadavg format")
	}
	la.Load1 = util.ParseFloat64(fields[0])
	la.Load5 = util.ParseFloat64(fields[1])
	la.Load15 = util.ParseFloat64(fields[2])

	// fields[3] = "running/total"
	parts := strings.SplitN(fields[3], "/", 2)
	if len(parts) == 2 {
		la.Running = util.ParseUint64(parts[0])
		la.Total = util.ParseUint64(parts[1])
	}
	return nil
}

// ReadMemory reads the subset of /proc/meminfo spec.md §6 requires into a
// model.MemoryMetrics.
func (r *HostReader) ReadMemory() (model.MemoryMetrics, error) {
	var mem model.MemoryMetrics

	kv, err := util.ParseKeyValueFile(filepath.Join(r.root(), "meminfo"))
	if err != nil {
		return mem, fmt.Errorf("read /proc/meminfo: %w", err)
	}

	mem.Total = parseKB(kv["MemTotal"])
	mem.Free = parseKB(kv["MemFree"])
	mem.Available = parseKB(kv["MemAvailable"])
	mem.Buffers = parseKB(kv["Buffers"])
	mem.Cached = parseKB(kv["Cached"])
	mem.SwapTotal = parseKB(kv["SwapTotal"])
	mem.SwapFree = parseKB(kv["SwapFree"])
	mem.SwapUsed = mem.SwapTotal - mem.SwapFree
	return mem, nil
}

// parseKB parses a meminfo value like "1234 kB" and returns bytes.
func parseKB(s string) uint64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " kB")
	s = strings.TrimSuffix(s, "kB")
	s = strings.TrimSpace(s)
	return util.ParseUint64(s) * 1024
}
