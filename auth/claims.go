package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the part of the access token payload the dashboard uses for display and routing.
// The signature is not verified; the backend stays responsible for authorization.
type Claims struct {
	ID             string
	Role           string
	MunicipalityID string
	ExpiresAt      time.Time
}

// Expired reports whether the token carried an expiry that lies before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

type accessClaims struct {
	UserID         looseString `json:"id"`
	Role           string      `json:"role"`
	MunicipalityID looseString `json:"municipalityId"`
	jwt.RegisteredClaims
}

// DecodeClaims reads the payload of an access token without verifying it.
func DecodeClaims(token string) (Claims, error) {
	if token == "" {
		return Claims{}, fmt.Errorf("empty token")
	}
	var ac accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &ac); err != nil {
		return Claims{}, fmt.Errorf("failed to decode access token: %w", err)
	}

	claims := Claims{
		ID:             string(ac.UserID),
		Role:           ac.Role,
		MunicipalityID: string(ac.MunicipalityID),
	}
	if claims.ID == "" {
		claims.ID = ac.Subject
	}
	if ac.ExpiresAt != nil {
		claims.ExpiresAt = ac.ExpiresAt.Time
	}
	return claims, nil
}

// looseString accepts a JSON string or number. The backend emits numeric ids for some roles.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*s = looseString(n.String())
	return nil
}
