package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"usercenter/apperror"
	"usercenter/models"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/golang-jwt/jwt/v4"
)

// Request attribute keys set by the filters.
const (
	AttrUserID   = "user_id"
	AttrUsername = "username"
)

// CustomClaims represents the claims carried by our JWTs.
type CustomClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// ErrorWriter renders an authentication fault. Filters stop the chain after calling it.
type ErrorWriter func(req *restful.Request, resp *restful.Response, err error)

// Authenticator issues and verifies HS256 tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewAuthenticator(secret string, ttl time.Duration, issuer string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}
}

// GenerateToken creates a new JWT for the given user.
func (a *Authenticator) GenerateToken(user *models.User) (string, error) {
	now := a.now()
	claims := &CustomClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    a.issuer,
			Subject:   fmt.Sprint(user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseAndValidateToken verifies the signature and time claims of tokenString.
// Every failure is an unauthorized fault.
func (a *Authenticator) ParseAndValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})

	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, apperror.Unauthorized("malformed token")
			case ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0:
				return nil, apperror.Unauthorized("token is either expired or not active yet")
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				return nil, apperror.Unauthorized("invalid token signature")
			}
		}
		return nil, apperror.Unauthorized("couldn't handle this token: %v", err)
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, apperror.Unauthorized("invalid token")
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", apperror.Unauthorized("authorization header required")
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", apperror.Unauthorized("invalid authorization header format")
	}
	return parts[1], nil
}

// AuthFilter creates a go-restful FilterFunction rejecting requests without a valid bearer token.
func (a *Authenticator) AuthFilter(writeError ErrorWriter) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		if err := a.authenticate(req); err != nil {
			writeError(req, resp, err)
			return
		}
		chain.ProcessFilter(req, resp)
	}
}

// OptionalAuthFilter identifies the caller when a bearer token is sent and
// lets anonymous requests through. A token that is sent but invalid is rejected.
func (a *Authenticator) OptionalAuthFilter(writeError ErrorWriter) restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		if req.HeaderParameter("Authorization") != "" {
			if err := a.authenticate(req); err != nil {
				writeError(req, resp, err)
				return
			}
		}
		chain.ProcessFilter(req, resp)
	}
}

// IdentifyFilter records the caller of every request carrying a valid bearer
// token. Missing or invalid tokens are ignored here and left to the route filters.
func (a *Authenticator) IdentifyFilter() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		if req.HeaderParameter("Authorization") != "" {
			_ = a.authenticate(req)
		}
		chain.ProcessFilter(req, resp)
	}
}

func (a *Authenticator) authenticate(req *restful.Request) error {
	tokenString, err := BearerToken(req.HeaderParameter("Authorization"))
	if err != nil {
		return err
	}
	claims, err := a.ParseAndValidateToken(tokenString)
	if err != nil {
		return err
	}

	// Store user information in request attributes for the route functions
	req.SetAttribute(AttrUserID, claims.UserID)
	req.SetAttribute(AttrUsername, claims.Username)
	return nil
}

// CallerID returns the id of the authenticated caller, if any.
func CallerID(req *restful.Request) (uint, bool) {
	id, ok := req.Attribute(AttrUserID).(uint)
	return id, ok
}
