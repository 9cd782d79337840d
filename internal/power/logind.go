// Package power keeps the machine awake while a recording is running.
package power

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/godbus/dbus/v5"
)

// logind D-Bus constants
const (
	logindService = "org.freedesktop.login1"
	logindPath    = "/org/freedesktop/login1"
	inhibitMethod = "org.freedesktop.login1.Manager.Inhibit"
)

// caller is the part of dbus.BusObject the inhibitor needs
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Logind takes systemd-logind inhibitor locks
type Logind struct {
	conn *dbus.Conn
	obj  caller
	who  string
	what string
}

// Connect opens the system bus. who names the application in inhibitor
// listings.
func Connect(who string) (*Logind, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	l := newLogind(conn.Object(logindService, dbus.ObjectPath(logindPath)), who)
	l.conn = conn
	return l, nil
}

func newLogind(obj caller, who string) *Logind {
	return &Logind{obj: obj, who: who, what: "sleep:idle"}
}

// Inhibit blocks sleep and idle until the returned closer is closed
func (l *Logind) Inhibit(why string) (io.Closer, error) {
	var fd dbus.UnixFD
	call := l.obj.Call(inhibitMethod, 0, l.what, l.who, why, "block")
	if call.Err != nil {
		return nil, fmt.Errorf("inhibit %s: %w", l.what, call.Err)
	}
	if err := call.Store(&fd); err != nil {
		return nil, fmt.Errorf("inhibit %s: %w", l.what, err)
	}

	logger.WithComponent("power").Debug().
		Str("what", l.what).
		Str("why", why).
		Int("fd", int(fd)).
		Msg("Sleep inhibited")
	return &lock{f: os.NewFile(uintptr(fd), "inhibitor"), why: why}, nil
}

// Close releases the bus connection. Held locks stay valid until closed.
func (l *Logind) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

// lock holds the inhibitor file descriptor; logind drops the lock when it
// is closed
type lock struct {
	f    *os.File
	why  string
	once sync.Once
	err  error
}

func (k *lock) Close() error {
	k.once.Do(func() {
		k.err = k.f.Close()
		logger.WithComponent("power").Debug().Str("why", k.why).Msg("Sleep inhibitor released")
	})
	return k.err
}
