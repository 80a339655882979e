package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/user/flixdeck/internal/config"
	"github.com/user/flixdeck/internal/middleware"
	"github.com/user/flixdeck/internal/model"
	"github.com/user/flixdeck/internal/repository"
	"github.com/user/flixdeck/internal/service"
	"github.com/user/flixdeck/internal/utils"
)

// Handler HTTP 处理器
type Handler struct {
	Repos    *repository.Repositories
	Config   *config.Config
	Auth     *service.AuthService
	Sessions *service.SessionRegistry
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories, cfg *config.Config, registry *service.SessionRegistry) *Handler {
	return &Handler{
		Repos:    repos,
		Config:   cfg,
		Auth:     service.NewAuthService(repos.User),
		Sessions: registry,
	}
}

// ==================== 认证 ====================

type credentialsRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
	Name     string `json:"name" form:"name"`
}

// SignUp 注册
func (h *Handler) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.BadRequest(c, "邮箱或密码格式错误")
		return
	}

	user, err := h.Auth.SignUp(c.Request.Context(), req.Email, req.Name, req.Password)
	if errors.Is(err, repository.ErrUserExists) {
		utils.Error(c, http.StatusConflict, "该邮箱已注册")
		return
	}
	if err != nil {
		utils.InternalServerError(c, "注册失败，请重试")
		return
	}
	h.establishSession(c, user)
}

// Login 登录处理
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.BadRequest(c, "邮箱或密码格式错误")
		return
	}

	user, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		utils.Unauthorized(c, "邮箱或密码错误")
		return
	}
	if err != nil {
		utils.InternalServerError(c, "登录失败，请重试")
		return
	}
	h.establishSession(c, user)
}

// establishSession 写入 JWT Cookie 和 Session
func (h *Handler) establishSession(c *gin.Context, user *model.User) {
	token, err := middleware.GenerateToken(user.ID, user.Email, user.Name, h.Config.AppSecret, h.Config.JWTExpiry)
	if err != nil {
		utils.InternalServerError(c, "登录失败，请重试")
		return
	}

	// 设置 Cookie (JWT)
	c.SetCookie("token", token, int(h.Config.JWTExpiry.Seconds()), "/", "", false, true)

	// 保存 UserInfo 到 Session
	session := sessions.Default(c)
	session.Set("userinfo", model.SessionUser{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	})
	session.Save()

	utils.Success(c, gin.H{
		"token": token,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// Logout 登出：清除 Cookie，关闭该用户的会话
func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	if userinfo := session.Get("userinfo"); userinfo != nil {
		if su, ok := userinfo.(model.SessionUser); ok && su.ID != "" {
			h.Sessions.Remove(su.ID)
		}
	}
	session.Clear()
	session.Save()

	c.SetCookie("token", "", -1, "/", "", false, true)
	utils.SuccessWithMessage(c, "已退出登录", nil)
}

// Me 当前登录用户
func (h *Handler) Me(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	utils.Success(c, gin.H{
		"id":    identity.ID,
		"email": identity.Email,
		"name":  identity.Name,
	})
}
