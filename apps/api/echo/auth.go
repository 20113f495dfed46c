package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/school"
	"github.com/edufam/edufam/core/user"
)

var (
	tokenContextKey  = "userToken"
	contextUserKey   = "user"
	contextSchoolKey = "school_id"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt    int64    `json:"oriat,omitempty"`
	SchoolID        string   `json:"school_id,omitempty"`
	Username        string   `json:"username,omitempty"`
	Email           string   `json:"email,omitempty"`
	IsPlatformAdmin bool     `json:"is_platform_admin,omitempty"` // -> PLATFORM PORTAL
	IsAdmin         bool     `json:"is_admin,omitempty"`          // -> ADMIN PORTAL
	IsStaff         bool     `json:"is_staff,omitempty"`          // -> STAFF PORTAL
	IsParent        bool     `json:"is_parent,omitempty"`         // -> PARENT PORTAL
	Roles           []string `json:"roles,omitempty"`
}

func jwtConfig(conf *core.Config, lookup string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
		TokenLookup:   lookup,
	}
}

func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  "EduFam",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:    oriat,
		SchoolID:        usr.SchoolID,
		Username:        usr.Username,
		Email:           usr.Email,
		IsPlatformAdmin: usr.IsPlatformAdmin(),
		IsAdmin:         usr.IsAdmin(),
		IsStaff:         usr.IsStaff(),
		IsParent:        usr.IsParent(),
		Roles:           usr.Roles,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// NewToken is a shortcut for GenerateToken(conf, GetUserClaims(conf, usr)).
func NewToken(conf *core.Config, usr user.User) (string, error) {
	return GenerateToken(conf, GetUserClaims(conf, usr))
}

type authenticator struct {
	conf    *core.Config
	users   user.Service
	schools school.Service
}

// checkSchool fails when the school of usr is deactivated.
func (a *authenticator) checkSchool(ctx context.Context, usr user.User) error {
	if usr.SchoolID == "" {
		return nil
	}
	sch, err := a.schools.Get(ctx, usr.SchoolID)
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errSchoolDeactivated
		}
		return errors.Wrap(err, "finding user school")
	}
	if !sch.IsActive {
		return errSchoolDeactivated
	}
	return nil
}

func (a *authenticator) authenticate(ctx context.Context, uname, pwd string) (*Claims, error) {
	usr, err := a.users.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.IsActive {
		return nil, errAccountDeactivated
	}
	if err = a.checkSchool(ctx, usr); err != nil {
		return nil, err
	}
	usr, err = a.users.SetLastLogin(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetUserClaims(a.conf, usr), nil
}

func (a *authenticator) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, a.users, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.IsActive {
		return "", errAccountDeactivated
	}
	if err = a.checkSchool(ctx.Request().Context(), usr); err != nil {
		return "", err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(a.conf, GetUserClaims(a.conf, usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// getContextSchool returns the school in scope, set by the tenant middleware.
func getContextSchool(ctx echo.Context) string {
	id, _ := ctx.Get(contextSchoolKey).(string)
	return id
}
