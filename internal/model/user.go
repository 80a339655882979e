package model

import (
	"time"
)

// User 用户模型
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email" validate:"required,email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionUser 专门用于 Session 存储的用户信息结构
type SessionUser struct {
	ID    string
	Email string
	Name  string
}

// UserID 当前用户 ID
func (u SessionUser) UserID() string {
	return u.ID
}

// IsAuthenticated 有 ID 即视为已登录
func (u SessionUser) IsAuthenticated() bool {
	return u.ID != ""
}

// ValidateUser 校验用户字段
func ValidateUser(u *User) error {
	return validate.Struct(u)
}
