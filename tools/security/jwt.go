package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ArgbRelay/module/relay/model"
	"ArgbRelay/tools/errs"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed validity window of issued tokens.
const TokenTTL = 5 * time.Minute

// Options 控制签名参数。
type Options struct {
	Secret []byte // HMAC 密钥
	Alg    string // HS256/HS384/HS512（默认 HS256）
	Issuer string
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", Issuer: "argb-relay"}
}

// Claims carries the client identity in sub and one entry per role.
type Claims struct {
	Roles []string `json:"role,omitempty"`
	jwtlib.RegisteredClaims
}

// RoleSet parses the role claim, ignoring unknown names.
func (c *Claims) RoleSet() model.RoleSet {
	s, _ := model.ParseRoleSet(c.Roles)
	return s
}

// Issuer signs and parses relay tokens.
type Issuer struct {
	opts   Options
	method jwtlib.SigningMethod
	now    func() time.Time
}

func NewIssuer(opts Options) (*Issuer, error) {
	if len(opts.Secret) == 0 {
		return nil, errs.New("jwt secret is empty")
	}
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return nil, err
	}
	return &Issuer{opts: opts, method: method, now: time.Now}, nil
}

// Issue signs a token for identity valid for TokenTTL.
func (i *Issuer) Issue(identity string, roles model.RoleSet) (model.TokenInfo, error) {
	now := i.now()
	claims := Claims{
		Roles: roles.Strings(),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   identity,
			Issuer:    i.opts.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(TokenTTL)),
		},
	}

	signed, err := jwtlib.NewWithClaims(i.method, claims).SignedString(i.opts.Secret)
	if err != nil {
		return model.TokenInfo{}, errs.WrapMsg(err, "sign token", "sub", identity)
	}
	return model.TokenInfo{Token: signed, ExpiresIn: int(TokenTTL / time.Second)}, nil
}

// Parse verifies signature and validity window. Expired tokens yield ErrExpiredAuth,
// anything else unusable yields ErrUnauthenticated.
func (i *Issuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		// 仅允许配置的 HMAC 算法
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return i.opts.Secret, nil
	},
		jwtlib.WithValidMethods([]string{i.method.Alg()}),
		jwtlib.WithTimeFunc(i.now),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, errs.ErrExpiredAuth.WrapMsg("token expired")
		}
		return nil, errs.ErrUnauthenticated.WrapMsg(err.Error())
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errs.ErrUnauthenticated.WrapMsg("invalid token")
	}
	return claims, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, errs.New("unsupported alg (use HS256/HS384/HS512)", "alg", alg)
	}
}
