//go:build linux

package platform

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tayokelay/nowplaying/backend/session"
)

// constants from linux/input-event-codes.h and linux/uinput.h
const (
	evSyn = 0x00
	evKey = 0x01

	keyNextSong     = 163
	keyPlayPause    = 164
	keyPreviousSong = 165
	keyPlayCD       = 200
	keyPauseCD      = 201

	uinputMaxNameSize = 80

	uiSetEvBit   = 0x40045564 // _IOW('U', 100, int)
	uiSetKeyBit  = 0x40045565 // _IOW('U', 101, int)
	uiDevCreate  = 0x5501     // _IO('U', 1)
	uiDevDestroy = 0x5502     // _IO('U', 2)
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// struct uinput_user_dev, the pre-5.x setup interface, which works on
// every kernel that has uinput at all
type uinputUserDev struct {
	Name         [uinputMaxNameSize]byte
	ID           inputID
	FFEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// UinputKeyDispatcher synthesizes hardware media-key events through a
// virtual uinput keyboard, giving transport commands a fallback path when
// no live session handle exists.
type UinputKeyDispatcher struct {
	mu sync.Mutex
	fd int
}

var _ session.KeyDispatcher = (*UinputKeyDispatcher)(nil)

func NewUinputKeyDispatcher() (*UinputKeyDispatcher, error) {
	fd, err := unix.Open("/dev/uinput", unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("opening /dev/uinput: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiSetEvBit, evKey); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("enabling key events: %w", err)
	}
	for _, code := range []int{keyNextSong, keyPlayPause, keyPreviousSong, keyPlayCD, keyPauseCD} {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, code); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("enabling key code %d: %w", code, err)
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:], "nowplaying media keys")
	dev.ID = inputID{Bustype: 0x03 /* BUS_USB */, Vendor: 0x1, Product: 0x1, Version: 1}
	buf := (*[unsafe.Sizeof(dev)]byte)(unsafe.Pointer(&dev))[:]
	if _, err := unix.Write(fd, buf); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configuring uinput device: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("creating uinput device: %w", err)
	}
	return &UinputKeyDispatcher{fd: fd}, nil
}

func (u *UinputKeyDispatcher) Dispatch(key session.MediaKey, action session.KeyAction) error {
	code, ok := keyCode(key)
	if !ok {
		return fmt.Errorf("no key code for media key %d", key)
	}
	var value int32
	if action == session.KeyDown {
		value = 1
	}
	if err := u.writeEvent(evKey, code, value); err != nil {
		return err
	}
	return u.writeEvent(evSyn, 0, 0) // SYN_REPORT
}

func (u *UinputKeyDispatcher) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	unix.IoctlSetInt(u.fd, uiDevDestroy, 0)
	return unix.Close(u.fd)
}

func keyCode(key session.MediaKey) (uint16, bool) {
	switch key {
	case session.KeyPlay:
		return keyPlayCD, true
	case session.KeyPause:
		return keyPauseCD, true
	case session.KeyPlayPause:
		return keyPlayPause, true
	case session.KeyNext:
		return keyNextSong, true
	case session.KeyPrevious:
		return keyPreviousSong, true
	}
	return 0, false
}

func (u *UinputKeyDispatcher) writeEvent(typ, code uint16, value int32) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	ev := inputEvent{Type: typ, Code: code, Value: value}
	buf := (*[unsafe.Sizeof(ev)]byte)(unsafe.Pointer(&ev))[:]
	_, err := unix.Write(u.fd, buf)
	return err
}
