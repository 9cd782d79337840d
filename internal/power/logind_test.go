package power

import (
	"errors"
	"os"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type fakeManager struct {
	method string
	args   []interface{}
	reply  *dbus.Call
}

func (f *fakeManager) Call(method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	f.method = method
	f.args = args
	return f.reply
}

func TestInhibit(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	fd, err := unix.Dup(int(r.Fd()))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	mgr := &fakeManager{reply: &dbus.Call{Body: []interface{}{dbus.UnixFD(fd)}}}
	l := newLogind(mgr, "camcorder")

	lock, err := l.Inhibit("Recording video")
	require.NoError(t, err)
	assert.Equal(t, inhibitMethod, mgr.method)
	assert.Equal(t, []interface{}{"sleep:idle", "camcorder", "Recording video", "block"}, mgr.args)

	_, err = w.Write([]byte{1})
	assert.NoError(t, err, "lock still held")

	require.NoError(t, lock.Close())
	require.NoError(t, lock.Close(), "second close is a no-op")

	_, err = w.Write([]byte{1})
	assert.Error(t, err, "read end closed with the lock")
	assert.NoError(t, l.Close())
}

func TestInhibitErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply *dbus.Call
	}{
		{"call failed", &dbus.Call{Err: errors.New("access denied")}},
		{"bad reply", &dbus.Call{Body: []interface{}{"not an fd"}}},
		{"empty reply", &dbus.Call{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLogind(&fakeManager{reply: tt.reply}, "camcorder")
			lock, err := l.Inhibit("test")
			assert.Error(t, err)
			assert.Nil(t, lock)
		})
	}
}
