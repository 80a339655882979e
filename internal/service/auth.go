package service

import (
	"context"
	"errors"
	"strings"

	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/repository"
)

// ErrInvalidCredentials 密码错误
var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthService 极简账号服务，只负责提供用户 ID
type AuthService struct {
	users *repository.UserRepository
}

// NewAuthService 创建账号服务
func NewAuthService(users *repository.UserRepository) *AuthService {
	return &AuthService{users: users}
}

// SignUp 注册
func (s *AuthService) SignUp(ctx context.Context, email, name, password string) (*model.User, error) {
	if name == "" {
		name = defaultName(email)
	}
	return s.users.Create(ctx, email, name, password)
}

// Login 登录；邮箱未注册时直接创建账号
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return s.users.Create(ctx, email, defaultName(email), password)
	}
	if !s.users.CheckPassword(user, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func defaultName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
