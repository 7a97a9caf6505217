package controllers

import (
	"net/http"

	"github.com/mazeltote/mazeltote/app/services"
	"github.com/mazeltote/mazeltote/pkg/bind"
	"github.com/mazeltote/mazeltote/pkg/logger"
	"github.com/mazeltote/mazeltote/pkg/response"
)

type AuthController struct {
	auth *services.AuthService
}

func NewAuthController() *AuthController {
	return &AuthController{auth: services.NewAuthService()}
}

type registerInput struct {
	Name     string `json:"name"     validate:"required,min=2,max=255"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register handles POST /api/auth/register.
func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if errs, err := bind.JSON(r, &in); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	pair, err := c.auth.Register(in.Name, in.Email, in.Password)
	if err != nil {
		serviceError(w, err)
		return
	}

	logger.WithCtx(r.Context()).Info("auth: account registered", "user_id", pair.User.ID)
	response.Created(w, pair)
}

// Login handles POST /api/auth/login.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if errs, err := bind.JSON(r, &in); err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	} else if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	pair, err := c.auth.Login(in.Email, in.Password)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.Success(w, pair)
}
