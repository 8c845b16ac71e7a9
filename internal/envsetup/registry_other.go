//go:build !windows

package envsetup

import "fmt"

func newRegistryStore() (Store, error) {
	return nil, fmt.Errorf("%w: the registry store needs windows", ErrUnsupportedPlatform)
}
