// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// StringList decodes either a JSON string or an array of strings. Identity
// providers disagree on which one a roles claim is.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*l = nil
		} else {
			*l = StringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("roles claim must be a string or an array of strings: %w", err)
	}
	*l = many
	return nil
}

// AppMetadata holds provider-managed claims that users cannot edit.
type AppMetadata struct {
	Role  string     `json:"role,omitempty"`
	Roles StringList `json:"roles,omitempty"`
}

// Claims are the bearer token claims FieldSync reads.
type Claims struct {
	Email       string       `json:"email,omitempty"`
	Role        string       `json:"role,omitempty"`
	Roles       StringList   `json:"roles,omitempty"`
	AppMetadata *AppMetadata `json:"app_metadata,omitempty"`
	jwt.RegisteredClaims
}

// RoleClaims gathers every role hint in c.
func (c *Claims) RoleClaims() RoleClaims {
	rc := RoleClaims{Role: c.Role, Roles: append([]string(nil), c.Roles...)}
	if md := c.AppMetadata; md != nil {
		if md.Role != "" {
			rc.Roles = append(rc.Roles, md.Role)
		}
		rc.Roles = append(rc.Roles, md.Roles...)
	}
	return rc
}

// JWTManager validates HS256 tokens issued by the auth service. It can also
// mint tokens for the CLI and tests.
type JWTManager struct {
	secret []byte
	issuer string
}

// NewJWTManager returns a manager for secret. An empty issuer disables the
// iss check.
func NewJWTManager(secret, issuer string) (*JWTManager, error) {
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required but was empty")
	}
	return &JWTManager{secret: []byte(secret), issuer: issuer}, nil
}

// GenerateToken signs a token for subject with the given role claims.
func (m *JWTManager) GenerateToken(subject string, rc RoleClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:  rc.Role,
		Roles: rc.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature, expiry and issuer of tokenString.
// Tokens signed with anything but HMAC are rejected.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
