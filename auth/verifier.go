// Package auth verifies the bearer tokens presented at the WebSocket
// handshake. Token issuance (login, refresh) lives in the identity service;
// this package only consumes its access tokens.
package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"dragonfox-collabsync-server/domain"
)

var (
	// ErrInvalidToken is returned when the token is malformed, forged, or
	// carries no usable identity.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the custom claims the identity service puts in access tokens.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens against a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a Verifier for the given shared secret. If issuer is
// non-empty, tokens must carry a matching iss claim.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify implements domain.IdentityVerifier.
func (v *Verifier) Verify(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrExpiredToken
		}
		return domain.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}
	if v.issuer != "" {
		if iss, _ := claims.GetIssuer(); iss != v.issuer {
			return domain.Identity{}, ErrInvalidToken
		}
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return domain.Identity{}, ErrInvalidToken
	}

	return domain.Identity{UserID: userID, DisplayName: claims.DisplayName}, nil
}
