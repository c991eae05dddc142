package models

import (
	"context"
	"errors"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/utils"
	"gorm.io/gorm"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;uniqueIndex" json:"username"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     *string   `gorm:"size:100" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"size:20;not null;index" json:"role"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" validate:"required,max=100"`
	Name     string   `json:"name" validate:"required,max=100"`
	Email    *string  `json:"email" validate:"omitempty,email,max=100"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	Role     UserRole `json:"role" validate:"required"`
}

type LoginInfo struct {
	Token     string   `json:"token"`
	ExpiresAt int64    `json:"expires_at"`
	UserId    int      `json:"user_id"`
	Username  string   `json:"username"`
	Name      string   `json:"name"`
	Role      UserRole `json:"role"`
}

func (input *NewUser) validate(ctx context.Context) error {
	input.Username = html.EscapeString(strings.TrimSpace(input.Username))
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.Role.IsValid() {
		return utils.NewFieldError("role", "\""+string(input.Role)+"\" is not a valid choice")
	}
	exists, err := utils.ResourceExists(ctx, config.GetDB(), &User{}, "username = ?", input.Username)
	if err != nil {
		return err
	}
	if exists {
		return utils.NewFieldError("username", "a user with that username already exists")
	}
	return nil
}

// RegisterUser creates an account with the requested role. Only a CEO may register users.
func RegisterUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := Authorize(ctx, OpRegisterUser); err != nil {
		return nil, err
	}
	return createUser(ctx, input)
}

// CreateInitialUser bypasses authorization; used by cmd/seed-admin to bootstrap the first CEO.
func CreateInitialUser(ctx context.Context, input *NewUser) (*User, error) {
	return createUser(ctx, input)
}

func createUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		Username: input.Username,
		Name:     input.Name,
		Email:    input.Email,
		Password: string(hashed),
		Role:     input.Role,
		IsActive: utils.NewTrue(),
	}
	if err := config.GetDB().WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

var errInvalidCredentials = utils.NewValidationError("invalid username or password", nil)

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	db := config.GetDB()
	var user User
	err := db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, errInvalidCredentials
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, utils.NewForbiddenError("user is disabled")
	}

	token, claims, err := utils.JwtGenerate(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(userCacheKey(user.ID), &user, time.Until(time.Unix(claims.ExpiresAt, 0))); err != nil {
		config.LogError(config.GetLogger(), "User", "Login", "cache user", user.ID, err)
	}
	return &LoginInfo{
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
		UserId:    user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Role:      user.Role,
	}, nil
}

// Logout revokes the request's token id until the token would have expired anyway
// and drops the cached user. Without redis there is nowhere to keep the revocation
// list and the token stays valid until expiry.
func Logout(ctx context.Context, expiresAt int64) error {
	if err := config.RemoveRedisKey(userCacheKey(actorId(ctx))); err != nil {
		config.LogError(config.GetLogger(), "User", "Logout", "drop cached user", actorId(ctx), err)
	}
	tokenId, _ := utils.GetTokenFromContext(ctx)
	ttl := time.Until(time.Unix(expiresAt, 0))
	if ttl <= 0 || tokenId == "" {
		return nil
	}
	return config.SetRedisValue(revokedTokenKey(tokenId), "1", ttl)
}

func IsTokenRevoked(tokenId string) (bool, error) {
	if tokenId == "" {
		return false, nil
	}
	_, exists, err := config.GetRedisValue(revokedTokenKey(tokenId))
	return exists, err
}

func revokedTokenKey(tokenId string) string {
	return "RevokedToken:" + tokenId
}

func userCacheKey(userId int) string {
	return "User:" + strconv.Itoa(userId)
}

// GetUser reads through the redis user cache.
func GetUser(ctx context.Context, id int) (*User, error) {
	var user User
	exists, err := config.GetRedisObject(userCacheKey(id), &user)
	if err == nil && exists {
		return &user, nil
	}
	return utils.FetchModel[User](ctx, config.GetDB(), "user", id)
}

func GetUsersByIds(ctx context.Context, ids []int) ([]*User, error) {
	var results []*User
	err := config.GetDB().WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	return results, err
}

func GetUsers(ctx context.Context, role *UserRole) ([]*User, error) {
	if err := Authorize(ctx, OpListUsers); err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Order("id ASC")
	if role != nil {
		q = q.Where("role = ?", *role)
	}
	var results []*User
	err := q.Find(&results).Error
	return results, err
}
