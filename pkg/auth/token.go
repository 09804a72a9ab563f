package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSubject is returned when a valid token names nobody.
	ErrNoSubject = errors.New("token has no subject")
)

// Sign issues an HS256 token for subject. A zero ttl means no expiry.
func Sign(secret []byte, subject string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":      subject,
		"username": subject,
		"iat":      time.Now().Unix(),
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify checks an HS256 token and returns its subject. The "sub" claim is
// preferred; "username" is accepted for tokens minted elsewhere.
func Verify(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	if sub, _ := claims["sub"].(string); sub != "" {
		return sub, nil
	}
	if name, _ := claims["username"].(string); name != "" {
		return name, nil
	}
	return "", ErrNoSubject
}
