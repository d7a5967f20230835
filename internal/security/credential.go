package security

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// GenerateCredential mints the one-time credential sent to the registrar
// when a member is first registered. The plaintext leaves the process only
// inside that signed request; locally we keep a bcrypt hash for audit.
func GenerateCredential() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")[:32]
}

func HashCredential(credential string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func VerifyCredential(hash, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil
}
