package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Rrens/smart-chat/internal/api/response"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// decodeJSON reads a JSON body into dst and validates it, writing a 400
// response on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			response.BadRequest(w, err.Error())
			return false
		}

		fields := make(map[string]string)
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				fields[e.Field()] = "field is required"
			case "max":
				fields[e.Field()] = "must be at most " + e.Param() + " characters"
			case "oneof":
				fields[e.Field()] = "must be one of " + e.Param()
			default:
				fields[e.Field()] = "validation failed on " + e.Tag()
			}
		}
		response.BadRequest(w, fields)
		return false
	}
	return true
}
