package controllers

import (
	"net/http"

	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/pkg/response"
)

type CharityController struct{}

func NewCharityController() *CharityController { return &CharityController{} }

// Index handles GET /api/charities — the fixed list a buyer picks from at
// checkout.
func (c *CharityController) Index(w http.ResponseWriter, r *http.Request) {
	response.Success(w, models.Charities)
}
