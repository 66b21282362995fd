package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/bcrypt"
)

// ErrMismatchedHashAndPassword is returned when a plaintext does not match
// the stored hash. Flows collapse it into ErrUnauthorized before it
// reaches a caller.
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password")

// ErrNoEmptyString rejects empty plaintexts before hashing
var ErrNoEmptyString = errors.New("password must not be empty")

// BcryptHasher implements PasswordAuthenticator with a configurable work
// factor.
type BcryptHasher struct {
	cost int
}

var _ PasswordAuthenticator = (*BcryptHasher)(nil)

// NewBcryptHasher creates a hasher, falling back to DefaultBcryptCost for
// out of range values.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// HashPassword will generate a password hash
func (b *BcryptHasher) HashPassword(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", goerrors.Wrap(err, ErrCryptoFailure.Category, ErrCryptoFailure.Message).
			WithTextCode(ErrCryptoFailure.TextCode)
	}
	return string(h), nil
}

// ComparePasswordAndHash validates the given cleartext password against
// the hashed password. A mismatch returns ErrMismatchedHashAndPassword;
// any other bcrypt fault is classified as a crypto failure.
func (b *BcryptHasher) ComparePasswordAndHash(plaintext, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return goerrors.Wrap(err, ErrCryptoFailure.Category, ErrCryptoFailure.Message).
			WithTextCode(ErrCryptoFailure.TextCode)
	}
	return nil
}

// RandomPassword generates the strong replacement password used by the
// reset confirmation flow: 10 chars, digits and symbols, no lookalikes.
func RandomPassword() (string, error) {
	gen, err := password.NewGenerator(&password.GeneratorInput{
		Symbols: "!@#$%^&*()_+-=[]{}",
	})
	if err != nil {
		return "", goerrors.Wrap(err, ErrCryptoFailure.Category, ErrCryptoFailure.Message).
			WithTextCode(ErrCryptoFailure.TextCode)
	}

	out, err := gen.Generate(10, 2, 2, false, false)
	if err != nil {
		return "", goerrors.Wrap(err, ErrCryptoFailure.Category, ErrCryptoFailure.Message).
			WithTextCode(ErrCryptoFailure.TextCode)
	}
	return out, nil
}
