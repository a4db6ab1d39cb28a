package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Every input here starts with "/", and FilterName carries literal path
// separators through unchanged except where a recognized label swallows
// them (user-slice uid splice, lxc legacy child descent, user@<uid>.service
// skip-and-descend, nspawn /supervisor and /payload suffixes) — it collapses
// individual labels, not the whole path, matching CGroup_filterName_internal.

func TestFilterNameSystemSlice(t *testing.T) {
	assert.Equal(t, "/[S]/!docker-abc123", FilterName("/system.slice/docker-abc123.scope"))
}

func TestFilterNameSystemSliceSkipsSystemUnitWrapper(t *testing.T) {
	got := FilterName("/system.slice/system-getty.slice/getty@tty1.service")
	assert.Equal(t, "/[S]/getty@tty1", got)
}

func TestFilterNameMachineSlice(t *testing.T) {
	assert.Equal(t, "/[M]", FilterName("/machine.slice"))
}

func TestFilterNameUserSliceWithUID(t *testing.T) {
	assert.Equal(t, "/[U:1000]", FilterName("/user.slice/user-1000.slice"))
}

func TestFilterNameUserSliceBare(t *testing.T) {
	assert.Equal(t, "/[U]", FilterName("/user.slice"))
}

func TestFilterNameGenericSlice(t *testing.T) {
	assert.Equal(t, "/[foo]", FilterName("/foo.slice"))
}

func TestFilterNameLXCPayload(t *testing.T) {
	assert.Equal(t, "/[lxc:mycontainer]", FilterName("/lxc.payload.mycontainer"))
}

func TestFilterNameLXCMonitor(t *testing.T) {
	assert.Equal(t, "/[LXC:mycontainer]", FilterName("/lxc.monitor.mycontainer"))
}

func TestFilterNameLegacyLXCPayload(t *testing.T) {
	assert.Equal(t, "/[lxc:mycontainer]", FilterName("/lxc.payload/mycontainer"))
}

func TestFilterNameSystemdService(t *testing.T) {
	assert.Equal(t, "/[S]/nginx", FilterName("/system.slice/nginx.service"))
}

func TestFilterNameUserAtServiceDescendsIntoChild(t *testing.T) {
	got := FilterName("/user.slice/user-1000.slice/user@1000.service/app.slice/myapp.service")
	assert.Equal(t, "/[U:1000]/[app]/myapp", got)
}

func TestFilterNameNspawnMachineScope(t *testing.T) {
	assert.Equal(t, "/[snc:mybox]", FilterName("/machine-mybox.scope"))
}

func TestFilterNameNspawnSupervisorScope(t *testing.T) {
	assert.Equal(t, "/[SNC:mybox]", FilterName("/machine-mybox.scope/supervisor"))
}

func TestFilterNameSnapScope(t *testing.T) {
	assert.Equal(t, "/!snap:firefox", FilterName("/snap.firefox.123.scope"))
}

func TestFilterNameGenericScope(t *testing.T) {
	assert.Equal(t, "/!mysession", FilterName("/mysession.scope"))
}

func TestFilterNameUnrecognizedSegmentPassesThrough(t *testing.T) {
	assert.Equal(t, "/some/random/path", FilterName("/some/random/path"))
}

func TestFilterNameEmptyInput(t *testing.T) {
	assert.Equal(t, "", FilterName(""))
}
