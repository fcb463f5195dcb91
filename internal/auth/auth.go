package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/driverbook/tripwage/internal/types"
)

const expireDuration = 30 * 24 * time.Hour

var ErrTokenWrong = errors.New("token is invalid")

// HashPassword produces the bcrypt hash stored at rest.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the candidate matches the stored hash.
// The hash itself never leaves the storage layer.
func CheckPassword(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// NewToken issues a signed token carrying the user id.
func NewToken(userID, signingKey string) (string, error) {
	token := jwt.NewWithClaims(
		jwt.SigningMethodHS256,
		&types.Claims{
			UserID: userID,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(expireDuration)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
			},
		})

	return token.SignedString([]byte(signingKey))
}

// CheckToken validates the token and returns the user id it carries.
func CheckToken(accessToken, signingKey string) (string, error) {
	token, err := jwt.ParseWithClaims(
		accessToken,
		&types.Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(signingKey), nil
		},
	)
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*types.Claims); ok && token.Valid {
		return claims.UserID, nil
	}

	return "", ErrTokenWrong
}
