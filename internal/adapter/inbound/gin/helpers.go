package gin

import (
	"github.com/gin-gonic/gin"

	"github.com/genrelay/server/internal/model"
	apperrors "github.com/genrelay/server/internal/utils/errors"
	"github.com/genrelay/server/internal/utils/middleware"
)

// subjectFromContext returns the resolved caller, writing a 401 if the
// subject middleware did not run.
func subjectFromContext(c *gin.Context) (model.Subject, bool) {
	subject, ok := middleware.GetSubject(c)
	if !ok || subject.ID == "" {
		abortWithError(c, apperrors.Unauthorized(""))
		return model.Subject{}, false
	}
	return subject, true
}

func abortWithError(c *gin.Context, err *apperrors.AppError) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}
