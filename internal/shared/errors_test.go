package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "", UserSafeMessage(nil))
	assert.Equal(t, "not permitted", UserSafeMessage(fmt.Errorf("rbac: authorize: %w", ErrForbidden)))
	assert.Equal(t, "code invalid", UserSafeMessage(ErrInvalidOrExpiredCode))
	assert.Equal(t, "service temporarily unavailable", UserSafeMessage(fmt.Errorf("lookup: %w", ErrStoreUnavailable)))
	assert.Equal(t, "internal error", UserSafeMessage(errors.New("pq: relation does not exist")))
	assert.Equal(t, "internal error", UserSafeMessage(ErrUnknownAction))
}

func TestMenuCatalogValidate(t *testing.T) {
	assert.ErrorIs(t, MenuCatalog{}.Validate(), ErrConfiguration)
	assert.NoError(t, MenuCatalog{Users: "65a2e39a41556e2bc4e396de"}.Validate())
}
