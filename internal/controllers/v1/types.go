// Package v1 implements the v1 API: the import pipeline endpoints and the
// account, category and category rule resources.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contalivre/backend/internal/httputil"
	"github.com/contalivre/backend/internal/models"
)

// contextUser is the gin context key the identity middleware stores the
// authenticated user ID under.
const contextUser = "userID"

// HeaderUserID carries the caller identity. Authentication itself happens
// upstream, the backend trusts the header.
const HeaderUserID = "X-User-ID"

type URIID struct {
	ID string `uri:"id" binding:"required"` // ID of the resource
}

// UserMiddleware resolves the caller identity. Requests without a valid
// user ID are rejected; the user record is created on first sight.
func UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(HeaderUserID)
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.HTTPError{Error: "the " + HeaderUserID + " header must be set"})
			return
		}

		id, err := uuid.Parse(header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.HTTPError{Error: "the " + HeaderUserID + " header is not a valid UUID"})
			return
		}

		user := models.User{DefaultModel: models.DefaultModel{ID: id}}
		if err := models.DB.FirstOrCreate(&user).Error; err != nil {
			httputil.ErrorHandler(c, err)
			c.Abort()
			return
		}

		c.Set(contextUser, id)
		c.Next()
	}
}

// currentUser returns the authenticated user's ID. The identity
// middleware guarantees it is set.
func currentUser(c *gin.Context) uuid.UUID {
	return c.MustGet(contextUser).(uuid.UUID)
}

// parseID binds the :id URI parameter. On failure the response is already
// written.
func parseID(c *gin.Context) (uuid.UUID, bool) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		httputil.NewError(c, http.StatusBadRequest, err)
		return uuid.Nil, false
	}

	id, err := uuid.Parse(uri.ID)
	if err != nil {
		httputil.NewError(c, http.StatusBadRequest, err)
		return uuid.Nil, false
	}

	return id, true
}
