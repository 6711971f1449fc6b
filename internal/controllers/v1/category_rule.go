package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contalivre/backend/internal/httputil"
	"github.com/contalivre/backend/internal/models"
)

// RegisterCategoryRuleRoutes registers the routes for category rules with
// the RouterGroup that is passed.
func RegisterCategoryRuleRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", OptionsCategoryRuleList)
		r.GET("", GetCategoryRules)
		r.POST("", CreateCategoryRule)
	}

	// Rule with ID
	{
		r.OPTIONS("/:id", OptionsCategoryRuleDetail)
		r.GET("/:id", GetCategoryRule)
		r.PATCH("/:id", UpdateCategoryRule)
		r.DELETE("/:id", DeleteCategoryRule)
	}
}

// CategoryRuleEditable is the set of fields clients can set.
type CategoryRuleEditable struct {
	Name           string               `json:"name" example:"Padarias"`
	Priority       uint                 `json:"priority" example:"10"`
	Enabled        *bool                `json:"enabled"`
	MatchType      models.RuleMatchType `json:"matchType" example:"contains"`
	Pattern        string               `json:"pattern" example:"PADARIA"`
	AccountID      *uuid.UUID           `json:"accountId"`
	MinAmountCents *int64               `json:"minAmountCents"`
	MaxAmountCents *int64               `json:"maxAmountCents"`
	CategoryID     uuid.UUID            `json:"categoryId"`
}

func (e CategoryRuleEditable) model(userID uuid.UUID) models.CategoryRule {
	enabled := true
	if e.Enabled != nil {
		enabled = *e.Enabled
	}

	return models.CategoryRule{
		UserID:         userID,
		Name:           e.Name,
		Priority:       e.Priority,
		Enabled:        enabled,
		MatchType:      e.MatchType,
		Pattern:        e.Pattern,
		AccountID:      e.AccountID,
		MinAmountCents: e.MinAmountCents,
		MaxAmountCents: e.MaxAmountCents,
		CategoryID:     e.CategoryID,
	}
}

// checkReferences verifies the referenced category and account are owned
// by the user.
func (e CategoryRuleEditable) checkReferences(c *gin.Context, userID uuid.UUID) bool {
	if _, err := models.CategoryForUser(models.DB, userID, e.CategoryID); err != nil {
		httputil.NewError(c, http.StatusBadRequest, errRuleCategory)
		return false
	}

	if e.AccountID != nil {
		if _, err := models.AccountForUser(models.DB, userID, *e.AccountID); err != nil {
			httputil.NewError(c, http.StatusBadRequest, errRuleAccount)
			return false
		}
	}

	return true
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			CategoryRules
// @Success		204
// @Router			/v1/category-rules [options]
func OptionsCategoryRuleList(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			CategoryRules
// @Success		204
// @Router			/v1/category-rules/{id} [options]
func OptionsCategoryRuleDetail(c *gin.Context) {
	httputil.OptionsGetPatchDelete(c)
}

// @Summary		Create category rule
// @Description	Creates a new categorization rule. A pattern that does not
// @Description	compile is rejected here, not during an import commit.
// @Tags			CategoryRules
// @Produce		json
// @Success		201		{object}	models.CategoryRule
// @Failure		400		{object}	httputil.HTTPError
// @Param			rule	body		CategoryRuleEditable	true	"Rule"
// @Router			/v1/category-rules [post]
func CreateCategoryRule(c *gin.Context) {
	var editable CategoryRuleEditable
	if err := httputil.BindData(c, &editable); err != nil {
		return
	}

	userID := currentUser(c)
	if !editable.checkReferences(c, userID) {
		return
	}

	rule := editable.model(userID)
	if err := models.DB.Create(&rule).Error; err != nil {
		ruleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// @Summary		List category rules
// @Description	Returns all rules of the authenticated user in evaluation order
// @Tags			CategoryRules
// @Produce		json
// @Success		200	{array}	models.CategoryRule
// @Router			/v1/category-rules [get]
func GetCategoryRules(c *gin.Context) {
	rules, err := models.RulesForUser(models.DB, currentUser(c))
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.JSON(http.StatusOK, rules)
}

// @Summary		Get category rule
// @Description	Returns one rule of the authenticated user
// @Tags			CategoryRules
// @Produce		json
// @Success		200	{object}	models.CategoryRule
// @Failure		404
// @Router			/v1/category-rules/{id} [get]
func GetCategoryRule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	rule, err := models.RuleForUser(models.DB, currentUser(c), id)
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// @Summary		Update category rule
// @Description	Updates a rule of the authenticated user
// @Tags			CategoryRules
// @Produce		json
// @Success		200		{object}	models.CategoryRule
// @Failure		400		{object}	httputil.HTTPError
// @Failure		404
// @Param			rule	body	CategoryRuleEditable	true	"Rule"
// @Router			/v1/category-rules/{id} [patch]
func UpdateCategoryRule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	userID := currentUser(c)
	rule, err := models.RuleForUser(models.DB, userID, id)
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	var editable CategoryRuleEditable
	if err := httputil.BindData(c, &editable); err != nil {
		return
	}

	if !editable.checkReferences(c, userID) {
		return
	}

	updated := editable.model(userID)
	err = models.DB.Model(&rule).
		Select("Name", "Priority", "Enabled", "MatchType", "Pattern", "AccountID", "MinAmountCents", "MaxAmountCents", "CategoryID").
		Updates(updated).Error
	if err != nil {
		ruleError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

// @Summary		Delete category rule
// @Description	Deletes a rule of the authenticated user
// @Tags			CategoryRules
// @Success		204
// @Failure		404
// @Router			/v1/category-rules/{id} [delete]
func DeleteCategoryRule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	rule, err := models.RuleForUser(models.DB, currentUser(c), id)
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	if err := models.DB.Delete(&rule).Error; err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func ruleError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrRulePatternInvalid) {
		c.JSON(http.StatusBadRequest, httputil.HTTPError{
			Error: "the rule pattern does not compile",
			Code:  "invalid_pattern",
		})
		return
	}

	if errors.Is(err, models.ErrRulePatternEmpty) || errors.Is(err, models.ErrRuleMatchTypeInvalid) {
		httputil.NewError(c, http.StatusBadRequest, err)
		return
	}

	httputil.ErrorHandler(c, err)
}
