package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = time.Hour

var errMissingCredentials = errors.New("provider api key and secret are required")

// signToken issues a short-lived HS256 bearer token with the API key as issuer.
func signToken(apiKey, apiSecret string, now time.Time) (string, error) {
	if apiKey == "" || apiSecret == "" {
		return "", errMissingCredentials
	}
	claims := jwt.RegisteredClaims{
		Issuer:    apiKey,
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(apiSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
