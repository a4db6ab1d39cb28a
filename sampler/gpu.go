// Package sampler holds per-process enrichment readers that the process
// package calls out to during a scan but that don't belong in
// process.LinuxSource's core /proc/<pid>/{stat,status,io,cgroup} walk: GPU
// fdinfo accounting, delay-accounting percentages, cgroup display-name
// filtering, and deleted-executable detection.
package sampler

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// GPUFdinfoResult is one process's parsed fdinfo directory: its total GPU
// time this scan (deduplicated across fds sharing the same drm client) and
// the per-engine breakdown, keyed by the engine name from the
// "drm-engine-<name>:" fdinfo key.
type GPUFdinfoResult struct {
	TotalNs  uint64
	EngineNs map[string]uint64
}

// clientKey identifies a drm client by (client-id, pdev) so that multiple
// fds opened by the same process against the same GPU client aren't
// double-counted, matching GPU_readProcessData's is_duplicate_client check.
type clientKey struct {
	id   uint64
	pdev string
}

// ReadFdinfo parses every file under pidDir/fdinfo per the drm-usage-stats
// convention (https://www.kernel.org/doc/html/latest/gpu/drm-usage-stats.html),
// summing "drm-engine-*: <ns> ns" lines once per distinct drm client seen
// across all fds. Returns nil if the fdinfo directory can't be read or no
// drm engine time was found in it — not an error, just "no GPU activity
// observed this scan", matching htop's goto-out-on-missing-dir behavior.
func ReadFdinfo(pidDir string) *GPUFdinfoResult {
	fdinfoDir := filepath.Join(pidDir, "fdinfo")
	entries, err := os.ReadDir(fdinfoDir)
	if err != nil {
		return nil
	}

	var result GPUFdinfoResult
	seen := make(map[clientKey]bool)

	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(fdinfoDir, e.Name()))
		if err != nil {
			continue
		}
		parseFdinfoFile(string(data), &result, seen)
	}

	if result.TotalNs == 0 {
		return nil
	}
	return &result
}

// sectionState mirrors GPU_readProcessData's section_state: whether the
// current (client-id, pdev) section has been classified yet as a fresh
// client this scan or one already counted via another fd.
type sectionState int

const (
	sectionUnknown sectionState = iota
	sectionDuplicate
	sectionNew
)

// parseFdinfoFile processes one fd's fdinfo text. A file can describe more
// than one drm client section (client-id/pdev pairs reset per "drm-client-id:"
// line); a section's duplicate-ness against clients already counted via
// other fds this scan is decided lazily, at its first engine-time line — by
// then pdev (which conventionally precedes client-id in the file) is known,
// matching GPU_readProcessData's own per-section state machine.
func parseFdinfoFile(content string, result *GPUFdinfoResult, seen map[clientKey]bool) {
	var clientID uint64
	var pdev string
	haveClientID := false
	state := sectionUnknown

	flush := func() {
		if state == sectionNew && haveClientID {
			seen[clientKey{id: clientID, pdev: pdev}] = true
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimPrefix(line, "drm-")
		switch {
		case strings.HasPrefix(line, "client-id:"):
			flush()
			state = sectionUnknown
			id, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, "client-id:")), 10, 64)
			if err != nil {
				haveClientID = false
				continue
			}
			clientID = id
			haveClientID = true
		case strings.HasPrefix(line, "pdev:"):
			pdev = strings.TrimSpace(strings.TrimPrefix(line, "pdev:"))
		case strings.HasPrefix(line, "engine-"):
			rest := strings.TrimPrefix(line, "engine-")
			if strings.HasPrefix(rest, "capacity-") {
				continue
			}
			if state == sectionDuplicate {
				continue
			}
			colon := strings.IndexByte(rest, ':')
			if colon < 0 {
				continue
			}
			engine := rest[:colon]
			valuePart := strings.TrimSpace(rest[colon+1:])
			fields := strings.Fields(valuePart)
			if len(fields) < 2 || fields[1] != "ns" {
				continue
			}
			ns, err := strconv.ParseUint(fields[0], 10, 64)
			if err != nil {
				continue
			}
			if state == sectionUnknown {
				if haveClientID && !seen[clientKey{id: clientID, pdev: pdev}] {
					state = sectionNew
				} else {
					state = sectionDuplicate
					continue
				}
			}
			if result.EngineNs == nil {
				result.EngineNs = make(map[string]uint64)
			}
			result.EngineNs[engine] += ns
			result.TotalNs += ns
		}
	}

	flush()
}

// GPUActivityThrottleMs is the minimum interval between fdinfo rescans for
// a process that showed zero GPU activity last check — matches GPU.c's own
// 5000ms gpu_activityMs throttle, since re-walking fdinfo every tick for an
// idle process is wasted work.
const GPUActivityThrottleMs = 5000
