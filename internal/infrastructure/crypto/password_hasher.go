package crypto

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/turtacn/taskflow/internal/domain/service"
	"github.com/turtacn/taskflow/pkg/constants"
)

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a PasswordHasher. A cost outside bcrypt's range selects
// constants.BcryptCost.
func NewBcryptHasher(cost int) service.PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = constants.BcryptCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *bcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
