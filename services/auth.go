package services

import (
	"context"
	"errors"
	"strings"

	"github.com/yeremiapane/table-order/models"
	"github.com/yeremiapane/table-order/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const RoleAdmin = "admin"

// Authenticator memverifikasi login admin dan menerbitkan JWT.
type Authenticator struct {
	db     TxRunner
	tokens *utils.TokenManager
}

func NewAuthenticator(db TxRunner, tokens *utils.TokenManager) *Authenticator {
	return &Authenticator{db: db, tokens: tokens}
}

func (a *Authenticator) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", invalid("", "username and password required")
	}

	var admin models.Admin
	err := a.db.WithConn(ctx, func(db *gorm.DB) error {
		return db.Where("username = ?", username).First(&admin).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.ErrorLogger.WithField("username", username).Warn("failed login attempt")
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)); err != nil {
		utils.ErrorLogger.WithField("username", username).Warn("failed login attempt")
		return "", ErrInvalidCredentials
	}

	return a.tokens.GenerateToken(admin.Username, RoleAdmin)
}
