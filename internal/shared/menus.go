package shared

import (
	"fmt"
	"strings"
)

// MenuCatalog holds the menu identifiers protected routes declare. Values come
// from configuration and are handed to the handlers that mount those routes.
type MenuCatalog struct {
	Users string
}

// Validate ensures every menu identifier is set.
func (c MenuCatalog) Validate() error {
	if strings.TrimSpace(c.Users) == "" {
		return fmt.Errorf("%w: users menu id must be provided", ErrConfiguration)
	}
	return nil
}
