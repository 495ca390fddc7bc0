//go:build !windows && !linux

package hotkeys

func newPlatformBackend() (Backend, error) {
	return nil, ErrUnsupported
}
