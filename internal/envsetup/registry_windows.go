//go:build windows

package envsetup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/windows/registry"
)

const userEnvironmentKey = `Environment`

// RegistryStore edits HKCU\Environment directly. Values that reference other
// variables are written as REG_EXPAND_SZ so %name% keeps expanding.
type RegistryStore struct{}

func newRegistryStore() (Store, error) {
	return RegistryStore{}, nil
}

// Get returns the raw value of name, or "" when it does not exist.
func (RegistryStore) Get(_ context.Context, name string) (string, error) {
	key, err := registry.OpenKey(registry.CURRENT_USER, userEnvironmentKey, registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("open user environment key: %w", err)
	}
	defer key.Close()

	value, _, err := key.GetStringValue(name)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read user variable %s: %w", name, err)
	}
	return value, nil
}

// Set writes name, choosing REG_EXPAND_SZ when value contains a %reference%.
func (RegistryStore) Set(_ context.Context, name, value string) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, userEnvironmentKey, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open user environment key: %w", err)
	}
	defer key.Close()

	if strings.Count(value, "%") >= 2 {
		err = key.SetExpandStringValue(name, value)
	} else {
		err = key.SetStringValue(name, value)
	}
	if err != nil {
		return fmt.Errorf("write user variable %s: %w", name, err)
	}
	return nil
}
