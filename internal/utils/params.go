package utils

import (
	"strconv"

	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/gin-gonic/gin"
)

// ParamID parses the named path parameter as a positive id.
func ParamID(ctx *gin.Context, name string) (uint, error) {
	raw := ctx.Param(name)

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errs.Wrap(errs.ErrValidation, "invalid "+name)
	}

	return uint(id), nil
}
