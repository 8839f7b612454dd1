package controller

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

// bindStrictJSON decodes the request body into obj and rejects fields obj
// does not declare.
func bindStrictJSON(ctx *gin.Context, obj any) error {
	if ctx.Request.Body == nil {
		return errors.New("request body is empty")
	}
	dec := json.NewDecoder(ctx.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(obj); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}
