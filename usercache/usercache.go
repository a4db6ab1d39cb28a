// Package usercache implements a lazy uid -> user-name cache, populated from
// the OS user database on first miss.
package usercache

import (
	"bufio"
	"os/exec"
	"os/user"
	"strconv"
	"strings"
	"sync"
)

// Cache is a lazy uid -> name cache. Names live as long as the cache does;
// there is no eviction, matching htop's UsersTable (a single process-lifetime
// cache owned by Machine).
type Cache struct {
	mu    sync.Mutex
	names map[uint32]string

	// static enables the getent(1) fallback path used by statically linked
	// builds, where calling getpwuid directly risks pulling in an
	// incompatible NSS shared object. Off by default; set by callers that
	// know they are running a static binary.
	static bool

	// lookup is overridable for tests.
	lookup func(uid uint32) (string, bool)
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{names: make(map[uint32]string)}
}

// WithStaticFallback enables the getent-based fallback lookup path, for
// builds where direct NSS lookups are unsafe. See Get's doc comment.
func (c *Cache) WithStaticFallback() *Cache {
	c.static = true
	return c
}

// Get returns the user name for uid, consulting the OS user database (or the
// getent fallback, if enabled) on first miss and caching the result.
//
// Resolution order matches htop's UsersTable_getRef:
//  1. getpwuid-equivalent (os/user.LookupId) — always tried first.
//  2. if that fails and the static fallback is enabled: shell out to
//     `getent passwd <uid>` and take the first colon-delimited field. This
//     is a security-relevant, trusted-command compatibility path: it must
//     never be fed attacker-controlled input, and uid is always a kernel
//     value, never string-concatenated into a shell.
//  3. if no name was obtained, cache and return the decimal uid string.
func (c *Cache) Get(uid uint32) string {
	c.mu.Lock()
	if name, ok := c.names[uid]; ok {
		c.mu.Unlock()
		return name
	}
	c.mu.Unlock()

	name, ok := c.resolve(uid)
	if !ok {
		name = strconv.FormatUint(uint64(uid), 10)
	}

	c.mu.Lock()
	c.names[uid] = name
	c.mu.Unlock()
	return name
}

func (c *Cache) resolve(uid uint32) (string, bool) {
	if c.lookup != nil {
		return c.lookup(uid)
	}

	if u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10)); err == nil {
		return u.Username, true
	}

	if c.static {
		return getent(uid)
	}

	return "", false
}

// getent shells out to `getent passwd <uid>` and parses the first
// colon-delimited field. Used only on the static-build fallback path; uid is
// formatted as a plain decimal, never interpolated into a shell string, so
// the exec.Command argument vector carries no injection surface.
func getent(uid uint32) (string, bool) {
	cmd := exec.Command("getent", "passwd", strconv.FormatUint(uint64(uid), 10))
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	if !scanner.Scan() {
		return "", false
	}
	line := scanner.Text()
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return "", false
	}
	return line[:colon], true
}

// Count returns the number of cached entries.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.names)
}
