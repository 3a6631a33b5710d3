package handler

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/logging"
	"github.com/user/miroku/internal/middleware"
	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/utils"
)

const sessionUserKey = "userinfo"

type registerRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
	Username        string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register 注册并登录
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	existing, err := h.Repos.User.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	if existing != nil {
		utils.Fail(c, apperr.Conflict("该邮箱已被注册"))
		return
	}

	// 未填写用户名时截取邮箱 @ 之前的部分
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = strings.SplitN(req.Email, "@", 2)[0]
	}

	user, err := h.Repos.User.Create(c.Request.Context(), req.Email, username, req.Password)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	if !h.startSession(c, user) {
		return
	}
	utils.Created(c, sessionUser(user))
}

// Login 登录
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.Repos.User.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	if user == nil || !h.Repos.User.CheckPassword(user, req.Password) {
		utils.Unauthorized(c, "邮箱或密码错误")
		return
	}
	if !h.startSession(c, user) {
		return
	}
	utils.Success(c, sessionUser(user))
}

// Logout 登出
func (h *Handler) Logout(c *gin.Context) {
	middleware.SetTokenCookie(c, "", 0)
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	utils.Success(c, nil)
}

// Me 当前登录用户
func (h *Handler) Me(c *gin.Context) {
	session := sessions.Default(c)
	if su, ok := session.Get(sessionUserKey).(model.SessionUser); ok && su.ID == owner(c) {
		utils.Success(c, su)
		return
	}
	user, err := h.Repos.User.FindByID(c.Request.Context(), owner(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	if user == nil {
		utils.Unauthorized(c, "")
		return
	}
	utils.Success(c, sessionUser(user))
}

// startSession 签发 Token 并写入 Session
func (h *Handler) startSession(c *gin.Context, user *model.User) bool {
	token, err := middleware.GenerateToken(user.ID, user.Email, h.Config.AppSecret, h.Config.JWTExpiry)
	if err != nil {
		logging.Error().Err(err).Int("user_id", user.ID).Msg("[Auth] Token 签发失败")
		utils.InternalServerError(c, "登录失败，请重试")
		return false
	}
	middleware.SetTokenCookie(c, token, h.Config.JWTExpiry)
	c.Header("Authorization", "Bearer "+token)

	session := sessions.Default(c)
	session.Set(sessionUserKey, sessionUser(user))
	if err := session.Save(); err != nil {
		logging.Warn().Err(err).Msg("[Auth] Session 保存失败")
	}
	return true
}

func sessionUser(user *model.User) model.SessionUser {
	return model.SessionUser{ID: user.ID, Email: user.Email, Username: user.Username}
}
