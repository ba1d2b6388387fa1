package memory

import (
	"testing"

	"github.com/chamahub/backend/internal/repository"
	"github.com/chamahub/backend/internal/repository/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		return New()
	})
}
