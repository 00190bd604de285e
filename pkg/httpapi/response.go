package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"rewards-controlplane/pkg/db/pagination"
	"rewards-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Page is the list envelope for cursor-paginated endpoints.
type Page[T any] struct {
	Data     []*T                 `json:"data"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

// Result writes data with code, or hands err to the error middleware.
func Result(c *gin.Context, code int, data any, err error) {
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(code, data)
}

// Bind decodes the JSON body into req. On failure the request is answered
// with a validation error and false is returned.
func Bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var details []errutil.Detail
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details = append(details, errutil.Detail{Field: fe.Field(), Message: fe.Tag()})
			}
		}
		_ = c.Error(errutil.BadRequest("invalid request body", err, errutil.WithDetails(details...)))
		return false
	}
	return true
}

// PageQuery reads ?cursor= and ?limit= from the query string.
func PageQuery(c *gin.Context) pagination.Pagination {
	limit, _ := strconv.Atoi(c.Query("limit"))
	return pagination.Pagination{Cursor: c.Query("cursor"), Limit: limit}
}

// FunctionError answers the /functions/v1 endpoints, which use a flat
// {"error": "..."} body.
func FunctionError(c *gin.Context, err error) {
	var be errutil.BaseError
	if errors.As(err, &be) {
		c.JSON(be.Code.HTTPStatus(), gin.H{"error": be.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
