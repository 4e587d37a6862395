package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a token payload cannot be decoded.
var ErrMalformedToken = errors.New("malformed token")

const (
	claimUserID = "uid"
	claimRoleID = "rid"
)

// Claims holds the identity a tab session is built from.
type Claims struct {
	UserID    string
	RoleID    string
	ExpiresAt int64 // epoch seconds, 0 when the token carries no exp claim
}

// Complete reports whether both identity claims are present.
func (c *Claims) Complete() bool {
	return c != nil && c.UserID != "" && c.RoleID != ""
}

// Decoder extracts [Claims] without checking the signature.
type Decoder struct {
	parser *jwt.Parser
}

// NewDecoder returns a decode-only parser. Numeric claims are kept as json.Number so
// large ids survive without float rounding.
func NewDecoder() *Decoder {
	return &Decoder{parser: jwt.NewParser(jwt.WithJSONNumber())}
}

// Decode parses the payload of tokenStr.
func (d *Decoder) Decode(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := d.parser.ParseUnverified(tokenStr, mapClaims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims := &Claims{
		UserID: claimString(mapClaims[claimUserID]),
		RoleID: claimString(mapClaims[claimRoleID]),
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if exp != nil {
		claims.ExpiresAt = exp.Unix()
	}

	return claims, nil
}

// claimString renders string and numeric claim values; anything else counts as absent.
func claimString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
