// Package cmd wires the data-plane core (collector, machine, process) into
// a periodic scan loop and prints the resulting process table as plain
// text. It intentionally has no terminal-drawing layer, no config
// load/save, no key-binding dispatch, and no signal-sending actions — those
// are all out of scope per spec.md's Non-goals; this is just enough of an
// outer loop to exercise Machine.Scan the way spec.md §1/§4.6 describes.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gopherlabs/ptop/collector"
	"github.com/gopherlabs/ptop/machine"
	"github.com/gopherlabs/ptop/model"
)

// Config holds the handful of options this entrypoint accepts.
type Config struct {
	Interval time.Duration
	Count    int // 0 means run forever
	Tree     bool
}

func parseFlags(args []string) (Config, error) {
	fs := flag.NewFlagSet("ptop", flag.ContinueOnError)
	interval := fs.Duration("interval", 2*time.Second, "scan interval")
	count := fs.Int("count", 0, "number of scans to run, 0 for unlimited")
	tree := fs.Bool("tree", false, "render the process table in tree order")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "ptop — process/resource sampler core\n\nUsage:\n  ptop [-interval DURATION] [-count N] [-tree]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return Config{Interval: *interval, Count: *count, Tree: *tree}, nil
}

// Run parses os.Args[1:] and drives the scan loop until Count scans have
// run, or forever if Count is 0.
func Run() error {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}
	return runLoop(os.Stdout, cfg)
}

func runLoop(w io.Writer, cfg Config) error {
	m := machine.New()
	reader := collector.NewHostReader()
	m.TreeView = cfg.Tree

	for i := 0; cfg.Count == 0 || i < cfg.Count; i++ {
		cpu, err := reader.ReadCPU()
		if err != nil {
			return fmt.Errorf("read cpu sample: %w", err)
		}
		mem, err := reader.ReadMemory()
		if err != nil {
			return fmt.Errorf("read memory sample: %w", err)
		}

		if err := m.Scan(time.Now(), cpu, mem); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		m.UpdateDisplayList()

		printScan(w, m, cpu, mem)

		if cfg.Count == 0 || i < cfg.Count-1 {
			time.Sleep(cfg.Interval)
		}
	}
	return nil
}

// printScan renders one tick's display list as a plain-text table: no
// colors, no cursor movement, no alternate screen — just enough to show
// that Scan produced a coherent tree/flat ordering and rate-derived
// fields. A real terminal UI is a spec.md Non-goal.
func printScan(w io.Writer, m *machine.Machine, cpu model.CPUMetrics, mem model.MemoryMetrics) {
	fmt.Fprintf(w, "--- %s  load %.2f %.2f %.2f  cpus %d  mem %.1f%% used ---\n",
		m.Realtime.Format(time.RFC3339),
		cpu.LoadAvg.Load1, cpu.LoadAvg.Load5, cpu.LoadAvg.Load15,
		cpu.NumCPUs, memUsedPercent(mem))

	fmt.Fprintf(w, "%6s %6s %-8s %6s %6s %-20s %s\n",
		"PID", "PPID", "USER", "CPU%", "MEM%", "STATE", "COMMAND")

	for _, p := range m.Processes.DisplayList() {
		indent := ""
		for i := uint32(0); i < p.TreeDepth; i++ {
			indent += "  "
		}
		fmt.Fprintf(w, "%6d %6d %-8s %6.1f %6.1f %-20s %s%s\n",
			p.Id, p.Parent, p.Owner, p.PercentCPU, p.PercentMem, p.State,
			indent, p.Comm)
	}
}

func memUsedPercent(mem model.MemoryMetrics) float64 {
	if mem.Total == 0 {
		return 0
	}
	var used uint64
	if mem.Available < mem.Total {
		used = mem.Total - mem.Available
	}
	pct := 100 * float64(used) / float64(mem.Total)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}
