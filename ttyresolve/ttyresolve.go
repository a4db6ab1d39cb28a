// Package ttyresolve maps a controlling-terminal device number to its path
// under /dev, built once from the kernel's tty-driver enumeration.
package ttyresolve

import (
	"bufio"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// driver is one line of /proc/tty/drivers: a contiguous minor-number range
// served by a path prefix.
type driver struct {
	major    uint32
	minorLo  uint32
	minorHi  uint32
	pathPrefix string
}

// Resolver resolves (major, minor) device numbers to /dev paths.
type Resolver struct {
	drivers []driver
	statFn  func(path string) (rdev uint64, ok bool)
}

// Load builds a Resolver from /proc/tty/drivers, sorted by major number for
// binary search. A failure to read the file yields an empty Resolver, which
// always falls back to the synthesized "/dev/<maj>:<min>" path.
func Load() *Resolver {
	r := &Resolver{statFn: statRdev}

	f, err := os.Open("/proc/tty/drivers")
	if err != nil {
		return r
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		d, ok := parseDriverLine(scanner.Text())
		if ok {
			r.drivers = append(r.drivers, d)
		}
	}

	sort.Slice(r.drivers, func(i, j int) bool {
		if r.drivers[i].major != r.drivers[j].major {
			return r.drivers[i].major < r.drivers[j].major
		}
		return r.drivers[i].minorLo < r.drivers[j].minorLo
	})

	return r
}

// parseDriverLine parses one line of /proc/tty/drivers:
//
//	name              /dev/prefix   major minorLo-minorHi type
//
// The minor field may be a single number or a "lo-hi" range, or "*" meaning
// the whole 0-255 range allocated dynamically.
func parseDriverLine(line string) (driver, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return driver{}, false
	}

	path := fields[1]
	major, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return driver{}, false
	}

	minorField := fields[3]
	var lo, hi uint64
	if minorField == "*" {
		lo, hi = 0, 255
	} else if idx := strings.IndexByte(minorField, '-'); idx >= 0 {
		lo, err = strconv.ParseUint(minorField[:idx], 10, 32)
		if err != nil {
			return driver{}, false
		}
		hi, err = strconv.ParseUint(minorField[idx+1:], 10, 32)
		if err != nil {
			return driver{}, false
		}
	} else {
		lo, err = strconv.ParseUint(minorField, 10, 32)
		if err != nil {
			return driver{}, false
		}
		hi = lo
	}

	return driver{major: uint32(major), minorLo: uint32(lo), minorHi: uint32(hi), pathPrefix: path}, true
}

// Resolve returns the /dev path for device (maj, min), falling back to
// "/dev/<maj>:<min>" if no driver entry matches.
func (r *Resolver) Resolve(maj, min uint32) string {
	i := sort.Search(len(r.drivers), func(i int) bool {
		return r.drivers[i].major >= maj
	})

	for ; i < len(r.drivers) && r.drivers[i].major == maj; i++ {
		d := r.drivers[i]
		if min < d.minorLo || min > d.minorHi {
			continue
		}

		idx := min - d.minorLo
		candidates := []string{
			d.pathPrefix + "/" + strconv.FormatUint(uint64(idx), 10),
			d.pathPrefix + strconv.FormatUint(uint64(idx), 10),
			d.pathPrefix,
		}
		wantRdev := unix.Mkdev(maj, min)
		for _, path := range candidates {
			if rdev, ok := r.statFn(path); ok && rdev == wantRdev {
				return path
			}
		}
	}

	return "/dev/" + strconv.FormatUint(uint64(maj), 10) + ":" + strconv.FormatUint(uint64(min), 10)
}

func statRdev(path string) (uint64, bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, false
	}
	return uint64(st.Rdev), true
}
