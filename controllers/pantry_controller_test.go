package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/mnmfullmetal/savor/services"
)

func TestRenderPantryErrorStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &services.ValidationError{Msg: "quantity must be positive"}, http.StatusBadRequest},
		{"unknown product", services.ErrProductNotFound, http.StatusNotFound},
		{"unknown item id", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"wrapped record miss", errors.Join(errors.New("fetching item"), gorm.ErrRecordNotFound), http.StatusNotFound},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		renderPantryError(c, tc.err)
		assert.Equal(t, tc.code, w.Code, tc.name)
	}
}
