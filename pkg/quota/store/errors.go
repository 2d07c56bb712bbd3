package store

import (
	"errors"
	"fmt"
)

var errClosed = errors.New("store is closed")

func validateKey(identity, periodKey string) error {
	if identity == "" {
		return fmt.Errorf("identity cannot be empty")
	}
	if periodKey == "" {
		return fmt.Errorf("period key cannot be empty")
	}
	return nil
}
