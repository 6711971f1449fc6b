package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contalivre/backend/internal/httputil"
	"github.com/contalivre/backend/internal/models"
)

// RegisterAccountRoutes registers the routes for accounts with
// the RouterGroup that is passed.
func RegisterAccountRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", OptionsAccountList)
		r.GET("", GetAccounts)
		r.POST("", CreateAccount)
	}

	// Account with ID
	{
		r.OPTIONS("/:id", OptionsAccountDetail)
		r.GET("/:id", GetAccount)
		r.PATCH("/:id", UpdateAccount)
		r.DELETE("/:id", DeleteAccount)
	}
}

// AccountEditable is the set of fields clients can set.
type AccountEditable struct {
	Type            models.AccountType `json:"type" example:"checking"`
	Name            string             `json:"name" example:"Conta corrente"`
	Institution     string             `json:"institution" example:"inter"`
	Currency        string             `json:"currency" example:"BRL"`
	ParentAccountID *uuid.UUID         `json:"parentAccountId"`
	DueDay          int                `json:"dueDay" example:"10"`
}

func (e AccountEditable) model(userID uuid.UUID) models.Account {
	return models.Account{
		UserID:          userID,
		Type:            e.Type,
		Name:            e.Name,
		Institution:     e.Institution,
		Currency:        e.Currency,
		ParentAccountID: e.ParentAccountID,
		DueDay:          e.DueDay,
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Accounts
// @Success		204
// @Router			/v1/accounts [options]
func OptionsAccountList(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Accounts
// @Success		204
// @Router			/v1/accounts/{id} [options]
func OptionsAccountDetail(c *gin.Context) {
	httputil.OptionsGetPatchDelete(c)
}

// @Summary		Create account
// @Description	Creates a new account for the authenticated user
// @Tags			Accounts
// @Produce		json
// @Success		201		{object}	models.Account
// @Failure		400		{object}	httputil.HTTPError
// @Param			account	body		AccountEditable	true	"Account"
// @Router			/v1/accounts [post]
func CreateAccount(c *gin.Context) {
	var editable AccountEditable
	if err := httputil.BindData(c, &editable); err != nil {
		return
	}

	account := editable.model(currentUser(c))
	if err := models.DB.Create(&account).Error; err != nil {
		accountError(c, err)
		return
	}

	c.JSON(http.StatusCreated, account)
}

// @Summary		List accounts
// @Description	Returns all accounts of the authenticated user
// @Tags			Accounts
// @Produce		json
// @Success		200	{array}	models.Account
// @Router			/v1/accounts [get]
func GetAccounts(c *gin.Context) {
	accounts, err := models.AccountsForUser(models.DB, currentUser(c))
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.JSON(http.StatusOK, accounts)
}

// @Summary		Get account
// @Description	Returns one account of the authenticated user
// @Tags			Accounts
// @Produce		json
// @Success		200	{object}	models.Account
// @Failure		404
// @Router			/v1/accounts/{id} [get]
func GetAccount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	account, err := models.AccountForUser(models.DB, currentUser(c), id)
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// @Summary		Update account
// @Description	Updates an account of the authenticated user
// @Tags			Accounts
// @Produce		json
// @Success		200		{object}	models.Account
// @Failure		400		{object}	httputil.HTTPError
// @Failure		404
// @Param			account	body	AccountEditable	true	"Account"
// @Router			/v1/accounts/{id} [patch]
func UpdateAccount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	account, err := models.AccountForUser(models.DB, currentUser(c), id)
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	var editable AccountEditable
	if err := httputil.BindData(c, &editable); err != nil {
		return
	}

	updated := editable.model(account.UserID)
	updated.DefaultModel = account.DefaultModel
	if err := models.DB.Model(&account).Select("Type", "Name", "Institution", "Currency", "ParentAccountID", "DueDay").Updates(updated).Error; err != nil {
		accountError(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// @Summary		Delete account
// @Description	Deletes an account of the authenticated user
// @Tags			Accounts
// @Success		204
// @Failure		404
// @Router			/v1/accounts/{id} [delete]
func DeleteAccount(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	account, err := models.AccountForUser(models.DB, currentUser(c), id)
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	if err := models.DB.Delete(&account).Error; err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func accountError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrAccountTypeInvalid) ||
		errors.Is(err, models.ErrAccountParentMustBeOwned) ||
		errors.Is(err, models.ErrAccountParentNotCredit) {
		httputil.NewError(c, http.StatusBadRequest, err)
		return
	}

	httputil.ErrorHandler(c, err)
}
