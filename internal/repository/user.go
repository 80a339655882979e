package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/flixdeck/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// ErrUserExists 邮箱已注册
var ErrUserExists = errors.New("user already exists")

type UserRepository struct {
	store KVStore
}

func NewUserRepository(store KVStore) *UserRepository {
	return &UserRepository{store: store}
}

func userKey(email string) string {
	return "user:" + strings.ToLower(strings.TrimSpace(email))
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, email, name, password string) (*model.User, error) {
	existing, err := r.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	// 密码哈希
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(email),
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := model.ValidateUser(user); err != nil {
		return nil, err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, userKey(email), data); err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail 根据邮箱查找用户，不存在返回 nil
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	data, err := r.store.Get(ctx, userKey(email))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &user, nil
}

// CheckPassword 验证密码
func (r *UserRepository) CheckPassword(user *model.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	return err == nil
}
