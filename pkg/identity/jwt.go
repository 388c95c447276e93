/*
 * Copyright 2026 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package identity is the credential collaborator: it turns a bearer
// token into an identity claim. The relay core never inspects
// credentials itself; it trusts what this package hands it.
package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrInvalidToken is returned for any token that fails parsing or
	// signature verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingEmail is returned when the token verifies but carries
	// no usable identity.
	ErrMissingEmail = errors.New("token has no email claim")
)

// Claims is the identity extracted from a verified token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenVerifier verifies a bearer credential and returns its claims.
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// HMACVerifier verifies HS256 tokens with a shared secret. Signature
// verification happens here, not in the relay core.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier builds a verifier around the shared secret.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify parses and verifies the token and extracts its claims.
func (v *HMACVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}

		return v.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Email == "" {
		return nil, ErrMissingEmail
	}

	return claims, nil
}

var _ TokenVerifier = (*HMACVerifier)(nil)
