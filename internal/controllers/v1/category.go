package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contalivre/backend/internal/httputil"
	"github.com/contalivre/backend/internal/models"
)

// RegisterCategoryRoutes registers the routes for categories with
// the RouterGroup that is passed.
func RegisterCategoryRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", OptionsCategoryList)
		r.GET("", GetCategories)
		r.POST("", CreateCategory)
	}

	// Category with ID
	{
		r.OPTIONS("/:id", OptionsCategoryDetail)
		r.GET("/:id", GetCategory)
		r.PATCH("/:id", UpdateCategory)
		r.DELETE("/:id", DeleteCategory)
	}
}

// CategoryEditable is the set of fields clients can set.
type CategoryEditable struct {
	Name     string     `json:"name" example:"Mercado"`
	Color    string     `json:"color" example:"#34d399"`
	Icon     string     `json:"icon" example:"shopping-cart"`
	ParentID *uuid.UUID `json:"parentId"`
}

func (e CategoryEditable) model(userID uuid.UUID) models.Category {
	return models.Category{
		UserID:   userID,
		Name:     e.Name,
		Color:    e.Color,
		Icon:     e.Icon,
		ParentID: e.ParentID,
	}
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Categories
// @Success		204
// @Router			/v1/categories [options]
func OptionsCategoryList(c *gin.Context) {
	httputil.OptionsGetPost(c)
}

// @Summary		Allowed HTTP verbs
// @Description	Returns an empty response with the HTTP Header "allow" set to the allowed HTTP verbs
// @Tags			Categories
// @Success		204
// @Router			/v1/categories/{id} [options]
func OptionsCategoryDetail(c *gin.Context) {
	httputil.OptionsGetPatchDelete(c)
}

// @Summary		Create category
// @Description	Creates a new category for the authenticated user
// @Tags			Categories
// @Produce		json
// @Success		201			{object}	models.Category
// @Failure		400			{object}	httputil.HTTPError
// @Param			category	body		CategoryEditable	true	"Category"
// @Router			/v1/categories [post]
func CreateCategory(c *gin.Context) {
	var editable CategoryEditable
	if err := httputil.BindData(c, &editable); err != nil {
		return
	}

	category := editable.model(currentUser(c))
	if err := models.DB.Create(&category).Error; err != nil {
		categoryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, category)
}

// @Summary		List categories
// @Description	Returns all categories of the authenticated user
// @Tags			Categories
// @Produce		json
// @Success		200	{array}	models.Category
// @Router			/v1/categories [get]
func GetCategories(c *gin.Context) {
	categories, err := models.CategoriesForUser(models.DB, currentUser(c))
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.JSON(http.StatusOK, categories)
}

// @Summary		Get category
// @Description	Returns one category of the authenticated user
// @Tags			Categories
// @Produce		json
// @Success		200	{object}	models.Category
// @Failure		404
// @Router			/v1/categories/{id} [get]
func GetCategory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	category, err := models.CategoryForUser(models.DB, currentUser(c), id)
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.JSON(http.StatusOK, category)
}

// @Summary		Update category
// @Description	Updates a category of the authenticated user
// @Tags			Categories
// @Produce		json
// @Success		200			{object}	models.Category
// @Failure		400			{object}	httputil.HTTPError
// @Failure		404
// @Param			category	body	CategoryEditable	true	"Category"
// @Router			/v1/categories/{id} [patch]
func UpdateCategory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	category, err := models.CategoryForUser(models.DB, currentUser(c), id)
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	var editable CategoryEditable
	if err := httputil.BindData(c, &editable); err != nil {
		return
	}

	updated := editable.model(category.UserID)
	if err := models.DB.Model(&category).Select("Name", "Color", "Icon", "ParentID").Updates(updated).Error; err != nil {
		categoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, category)
}

// @Summary		Delete category
// @Description	Deletes a category. Transactions in it become uncategorized,
// @Description	rules referencing it are deleted.
// @Tags			Categories
// @Success		204
// @Failure		404
// @Router			/v1/categories/{id} [delete]
func DeleteCategory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	category, err := models.CategoryForUser(models.DB, currentUser(c), id)
	if err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	if err := models.DB.Delete(&category).Error; err != nil {
		httputil.ErrorHandler(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func categoryError(c *gin.Context, err error) {
	if strings.Contains(err.Error(), "UNIQUE constraint failed: categories.user_id, categories.name") {
		httputil.NewError(c, http.StatusBadRequest, errCategoryNameTaken)
		return
	}

	httputil.ErrorHandler(c, err)
}
