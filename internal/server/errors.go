package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trustvault/backend/internal/errs"
)

// httpStatus maps the domain error taxonomy to HTTP status codes. Unknown
// errors are treated as internal failures and never leak details.
func httpStatus(err error) int {
	switch errs.KindOf(err) {
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Forbidden:
		return http.StatusForbidden
	case errs.InvalidArgument, errs.AlreadyVoted, errs.InvalidState, errs.InsufficientFunds:
		return http.StatusBadRequest
	case errs.Conflict:
		return http.StatusConflict
	case errs.Unauthenticated:
		return http.StatusUnauthorized
	case errs.Unavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := httpStatus(err)

	body := gin.H{"error": err.Error()}
	if kind := errs.KindOf(err); kind != 0 {
		body["code"] = kind.String()
	}
	if status == http.StatusInternalServerError {
		body = gin.H{"error": "internal server error"}
	}
	c.JSON(status, body)
}

func abortWithError(c *gin.Context, err error) {
	respondError(c, err)
	c.Abort()
}
