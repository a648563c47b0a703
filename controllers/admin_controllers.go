package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-order/services"
	"github.com/yeremiapane/table-order/utils"
)

type AdminController struct {
	Auth *services.Authenticator
}

func NewAdminController(auth *services.Authenticator) *AdminController {
	return &AdminController{Auth: auth}
}

// Login -> username + password admin, balikan access token
func (ac *AdminController) Login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondMessage(c, http.StatusBadRequest, "username and password required")
		return
	}

	token, err := ac.Auth.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithField("username", body.Username).Info("Admin logged in")
	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{"access_token": token})
}
