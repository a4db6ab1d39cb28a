package process

import (
	"github.com/gopherlabs/ptop/sampler"
	"github.com/gopherlabs/ptop/util"
)

// applyRates derives PercentCPU, the I/O rates and GPUPercent from this
// scan's cumulative counters against the ones recorded last scan. Called
// once per re-observed process, after the sampler has refreshed the
// cumulative fields but before Updated is set. On a process's first
// observation the prior counters don't exist yet, so the rates stay at
// their zero value (spec.md: "percent_cpu is undefined... implementations
// set it to NaN or 0" — this implementation picks 0, matching the
// teacher's own util.Rate/CPUPct convention of returning 0 rather than NaN
// on missing history).
func (p *Process) applyRates(nowMonotonicMs, prevMonotonicMs uint64, periodTicks float64, activeCPUs int) {
	if !p.hasPriorSample {
		p.PercentCPU = 0
		p.IORateReadBps = 0
		p.IORateWriteBps = 0
		p.GPUPercent = 0
		p.PercentIODelay = 0
		p.hasPriorSample = true
	} else {
		p.PercentCPU = cpuPercent(p.prevUTimeTicks+p.prevSTimeTicks, p.UTimeTicks+p.STimeTicks, periodTicks, activeCPUs)

		elapsedMs := nowMonotonicMs - p.ioLastScanMs
		p.IORateReadBps = rateBps(p.prevReadBytes, p.ReadBytes, elapsedMs)
		p.IORateWriteBps = rateBps(p.prevWriteBytes, p.WriteBytes, elapsedMs)

		scanElapsedMs := nowMonotonicMs - prevMonotonicMs
		p.GPUPercent = gpuPercent(p.prevGPUTimeNs, p.GPUTimeNs, scanElapsedMs)
		p.PercentIODelay = sampler.IODelayPercent(p.prevDelayacctBlkioTicks, p.DelayacctBlkioTicks, periodTicks)
	}

	p.prevUTimeTicks = p.UTimeTicks
	p.prevSTimeTicks = p.STimeTicks
	p.prevReadBytes = p.ReadBytes
	p.prevWriteBytes = p.WriteBytes
	p.prevGPUTimeNs = p.GPUTimeNs
	p.prevDelayacctBlkioTicks = p.DelayacctBlkioTicks
	p.ioLastScanMs = nowMonotonicMs
}

// cpuPercent implements spec.md's formula:
// clamp((Δutime+Δstime)/period*100, 0, activeCPUs*100).
func cpuPercent(prevTotal, currTotal uint64, periodTicks float64, activeCPUs int) float64 {
	if periodTicks <= 0 {
		return 0
	}
	delta := util.Delta(prevTotal, currTotal)
	pct := float64(delta) / periodTicks * 100
	max := float64(activeCPUs) * 100
	if pct > max {
		return max
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// rateBps implements spec.md's I/O rate formula:
// 1000 * Δbytes / Δms.
func rateBps(prev, curr uint64, elapsedMs uint64) float64 {
	if elapsedMs == 0 {
		return 0
	}
	delta := util.Delta(prev, curr)
	return 1000 * float64(delta) / float64(elapsedMs)
}

// gpuPercent implements spec.md's GPU formula:
// 100 * Δgpu_ns / 1e6 / Δms.
func gpuPercent(prev, curr uint64, elapsedMs uint64) float64 {
	if elapsedMs == 0 {
		return 0
	}
	delta := util.Delta(prev, curr)
	return 100 * float64(delta) / 1e6 / float64(elapsedMs)
}
