//go:build !linux

package platform

import (
	"errors"

	"github.com/tayokelay/nowplaying/backend/session"
)

var errKeysUnsupported = errors.New("media key synthesis is not supported on this platform")

type UinputKeyDispatcher struct{}

func NewUinputKeyDispatcher() (*UinputKeyDispatcher, error) {
	return nil, errKeysUnsupported
}

func (u *UinputKeyDispatcher) Dispatch(key session.MediaKey, action session.KeyAction) error {
	return errKeysUnsupported
}

func (u *UinputKeyDispatcher) Close() error {
	return nil
}
