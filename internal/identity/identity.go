// Package identity resolves bearer tokens into the caller performing a request.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"

	DefaultIssuer = "flightseats"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Caller is the authenticated actor. It is passed explicitly into service
// operations rather than read from ambient state.
type Caller struct {
	PassengerID int64
	Email       string
	Admin       bool
}

// CanAccess reports whether the caller may act on the passenger's data.
func (c Caller) CanAccess(passengerID int64) bool {
	return c.Admin || (c.PassengerID != 0 && c.PassengerID == passengerID)
}

type claims struct {
	PassengerID int64  `json:"passenger_id,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider issues and verifies HS256 tokens.
type JWTProvider struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTProvider(secret, issuer string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (p *JWTProvider) Issue(c Caller, ttl time.Duration) (string, error) {
	role := "passenger"
	if c.Admin {
		role = RoleAdmin
	}
	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		PassengerID: c.PassengerID,
		Email:       c.Email,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(p.secret)
}

func (p *JWTProvider) Resolve(raw string) (Caller, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if cl.PassengerID == 0 && cl.Role != RoleAdmin {
		return Caller{}, fmt.Errorf("%w: token carries no passenger", ErrUnauthenticated)
	}
	return Caller{PassengerID: cl.PassengerID, Email: cl.Email, Admin: cl.Role == RoleAdmin}, nil
}
