// Package auth issues and verifies the bearer tokens accepted by the API.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	PurposeAccess       = "access"
	PurposeTelegramLink = "telegram_link"

	LinkTokenTTL = 15 * time.Minute
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the user id in the standard subject claim.
type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewIssuer(secret string, accessTTL time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), accessTTL: accessTTL, now: time.Now}
}

func (i *Issuer) Issue(userID int64, purpose string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (i *Issuer) IssueAccessToken(userID int64) (string, error) {
	return i.Issue(userID, PurposeAccess, i.accessTTL)
}

func (i *Issuer) IssueLinkToken(userID int64) (string, error) {
	return i.Issue(userID, PurposeTelegramLink, LinkTokenTTL)
}

// Parse verifies the signature, expiry and purpose and returns the user id.
func (i *Issuer) Parse(tokenString, purpose string) (int64, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != purpose {
		return 0, fmt.Errorf("%w: purpose %q", ErrInvalidToken, claims.Purpose)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return userID, nil
}

func (i *Issuer) ParseAccessToken(tokenString string) (int64, error) {
	return i.Parse(tokenString, PurposeAccess)
}

func (i *Issuer) ParseLinkToken(tokenString string) (int64, error) {
	return i.Parse(tokenString, PurposeTelegramLink)
}
