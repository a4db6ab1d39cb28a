package sampler

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DeletedFD is one open file descriptor pointing at content the filesystem
// no longer has an entry for.
type DeletedFD struct {
	FD        int
	Path      string
	SizeBytes uint64
}

// DeletedExeInfo reports why a process is running from content that isn't
// (or is no longer) backed by a live path on disk: its own executable was
// deleted out from under it — the classic "upgraded a package, forgot to
// restart the service" signature — it's running straight out of anonymous
// memory (memfd_create, often fileless malware but also some legitimate
// sandboxing runtimes), or it still holds deleted regular files open.
type DeletedExeInfo struct {
	ExeDeleted bool
	IsMemFD    bool
	DeletedFDs []DeletedFD
}

// HasFindings reports whether anything worth surfacing was found.
func (d DeletedExeInfo) HasFindings() bool {
	return d.ExeDeleted || d.IsMemFD || len(d.DeletedFDs) > 0
}

// CheckDeleted inspects a single process's /proc/<pid>/exe and open file
// descriptors for deleted or memory-backed content. exePath is the raw
// readlink of /proc/<pid>/exe, already available from the main /proc scan,
// so this doesn't redundantly re-read it.
func CheckDeleted(pidDir, exePath string) DeletedExeInfo {
	var info DeletedExeInfo

	switch {
	case strings.HasPrefix(exePath, "/memfd:"):
		info.IsMemFD = true
	case strings.HasSuffix(exePath, " (deleted)"):
		info.ExeDeleted = true
	}

	fdDir := filepath.Join(pidDir, "fd")
	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return info
	}

	for _, e := range entries {
		fdNum, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		linkPath := filepath.Join(fdDir, e.Name())
		target, err := os.Readlink(linkPath)
		if err != nil {
			continue
		}
		if !strings.HasSuffix(target, " (deleted)") {
			continue
		}
		var size uint64
		if st, err := os.Stat(linkPath); err == nil {
			size = uint64(st.Size())
		}
		info.DeletedFDs = append(info.DeletedFDs, DeletedFD{
			FD:        fdNum,
			Path:      strings.TrimSuffix(target, " (deleted)"),
			SizeBytes: size,
		})
	}

	return info
}
