package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/cobia/billing/pkg/apperror"
	"github.com/cobia/billing/pkg/validation"
)

// envelope is the body of every API response.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    apperror.Code          `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

// respondError writes err in the error envelope and aborts the chain. The
// cause of a 5xx is logged here and never sent to the client.
func (s *HTTPServer) respondError(c *gin.Context, err error) {
	appErr := apperror.From(err)
	if appErr.Status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err, "code", appErr.Code, "path", c.Request.URL.Path)
	} else {
		s.logger.Debug("Request rejected", "code", appErr.Code, "message", appErr.Message, "path", c.Request.URL.Path)
	}
	c.AbortWithStatusJSON(appErr.Status, envelope{
		Success: false,
		Error: &errorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// bindError maps a gin binding failure onto the error taxonomy. A missing
// field wins over any other rule violation in the same request.
func bindError(err error) *apperror.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.Validation(apperror.CodeValidation, "Malformed request body")
	}

	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return apperror.Validation(apperror.CodeMissingParameters, "Missing required parameters").
				WithDetail("field", fe.Field())
		}
	}

	fe := verrs[0]
	switch fe.Tag() {
	case validation.TagTxHash:
		return apperror.Validation(apperror.CodeInvalidTxHash, "Invalid transaction hash")
	case validation.TagPositiveDecimal:
		return apperror.Validation(apperror.CodeInvalidAmount, "Invalid amount")
	case "oneof":
		if fe.Field() == "Tier" {
			return apperror.Validation(apperror.CodeInvalidTier, "Invalid subscription tier")
		}
	}
	return apperror.Validation(apperror.CodeValidation, "Invalid request").WithDetail("field", fe.Field())
}
