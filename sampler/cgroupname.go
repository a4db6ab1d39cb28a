package sampler

import "strings"

// FilterName renders a cgroup path (as read from /proc/<pid>/cgroup, e.g.
// "/system.slice/docker-abc123.scope") into the short, bracketed display
// form htop uses, collapsing the systemd-unit and container-runtime
// conventions a raw path buries. Each recognized segment is collapsed on
// its own and the '/' separators between segments are kept, so
// "/system.slice/docker-abc123.scope" becomes "/[S]/!docker-abc123". Ported
// segment-by-segment from CGroup_filterName_internal; unrecognized segments
// are copied through unchanged.
func FilterName(cgroup string) string {
	var b strings.Builder
	i := 0
	n := len(cgroup)

	for i < n {
		if cgroup[i] == '/' {
			for i < n && cgroup[i] == '/' {
				i++
			}
			b.WriteByte('/')
			continue
		}

		labelStart := i
		nextSlash := strings.IndexByte(cgroup[i:], '/')
		var labelEnd int
		if nextSlash < 0 {
			labelEnd = n
		} else {
			labelEnd = i + nextSlash
		}
		label := cgroup[labelStart:labelEnd]
		rest := cgroup[labelEnd:]

		switch {
		case label == "system.slice":
			b.WriteString("[S]")
			i = labelEnd
			if strings.HasPrefix(rest, "/system-") {
				i = skipSegment(cgroup, labelEnd+1)
			}

		case label == "machine.slice":
			b.WriteString("[M]")
			i = labelEnd

		case label == "user.slice":
			b.WriteString("[U]")
			i = labelEnd
			if !strings.HasPrefix(rest, "/user-") {
				continue
			}
			afterPrefix := labelEnd + len("/user-")
			userSliceSlashPos := segmentEnd(cgroup, afterPrefix)
			sliceSpecPos := userSliceSlashPos - len(".slice")
			if sliceSpecPos < afterPrefix || cgroup[sliceSpecPos:userSliceSlashPos] != ".slice" {
				i = userSliceSlashPos
				continue
			}
			sliceName := cgroup[afterPrefix:sliceSpecPos]
			cur := b.String()
			b.Reset()
			b.WriteString(strings.TrimSuffix(cur, "]"))
			b.WriteByte(':')
			b.WriteString(sliceName)
			b.WriteByte(']')
			i = userSliceSlashPos

		case strings.HasSuffix(label, ".slice"):
			name := strings.TrimSuffix(label, ".slice")
			b.WriteByte('[')
			b.WriteString(name)
			b.WriteByte(']')
			i = labelEnd

		case strings.HasPrefix(label, "lxc.payload."):
			b.WriteString("[lxc:")
			b.WriteString(strings.TrimPrefix(label, "lxc.payload."))
			b.WriteByte(']')
			i = labelEnd

		case strings.HasPrefix(label, "lxc.monitor."):
			b.WriteString("[LXC:")
			b.WriteString(strings.TrimPrefix(label, "lxc.monitor."))
			b.WriteByte(']')
			i = labelEnd

		case label == "lxc.monitor" || label == "lxc.payload":
			isMonitor := label == "lxc.monitor"
			j := labelEnd
			for j < n && cgroup[j] == '/' {
				j++
			}
			childEnd := segmentEnd(cgroup, j)
			if childEnd > j {
				if isMonitor {
					b.WriteString("[LXC:")
				} else {
					b.WriteString("[lxc:")
				}
				b.WriteString(cgroup[j:childEnd])
				b.WriteByte(']')
				i = childEnd
			} else {
				b.WriteString(label)
				i = labelEnd
			}

		case strings.HasSuffix(label, ".service"):
			name := strings.TrimSuffix(label, ".service")
			if strings.HasPrefix(label, "user@") {
				i = labelEnd
				for i < n && cgroup[i] == '/' {
					i++
				}
				continue
			}
			b.WriteString(name)
			i = labelEnd

		case strings.HasSuffix(label, ".scope"):
			i = filterScopeLabel(label, rest, labelEnd, &b)

		default:
			b.WriteString(label)
			i = labelEnd
		}
	}

	return b.String()
}

// filterScopeLabel handles the three ".scope" cases: systemd-nspawn machine
// scopes ("machine-<name>.scope"), snap application scopes
// ("snap.<name>.<rev>.scope"), and the generic "!<name>" fallback.
func filterScopeLabel(label, rest string, labelEnd int, b *strings.Builder) int {
	scopeName := strings.TrimSuffix(label, ".scope")

	if strings.HasPrefix(scopeName, "machine-") {
		name := strings.TrimPrefix(scopeName, "machine-")
		isMonitor := strings.HasPrefix(rest, "/supervisor")
		if isMonitor {
			b.WriteString("[SNC:")
		} else {
			b.WriteString("[snc:")
		}
		b.WriteString(name)
		b.WriteByte(']')
		i := labelEnd
		if strings.HasPrefix(rest, "/supervisor") {
			i += len("/supervisor")
		} else if strings.HasPrefix(rest, "/payload") {
			i += len("/payload")
		}
		return i
	}

	if strings.HasPrefix(scopeName, "snap.") {
		afterPrefix := strings.TrimPrefix(scopeName, "snap.")
		name := afterPrefix
		if idx := strings.IndexByte(afterPrefix, '.'); idx >= 0 {
			name = afterPrefix[:idx]
		}
		b.WriteString("!snap:")
		b.WriteString(name)
		return labelEnd
	}

	b.WriteByte('!')
	b.WriteString(scopeName)
	return labelEnd
}

// segmentEnd returns the index of the next '/' at or after pos, or len(s)
// if there isn't one.
func segmentEnd(s string, pos int) int {
	if pos > len(s) {
		return len(s)
	}
	if idx := strings.IndexByte(s[pos:], '/'); idx >= 0 {
		return pos + idx
	}
	return len(s)
}

// skipSegment returns the index just past the next path segment starting
// at pos (used to skip an entire "/system-<id>" label in one step).
func skipSegment(s string, pos int) int {
	return segmentEnd(s, pos)
}
