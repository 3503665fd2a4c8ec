package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quizzly-service/internal/domain"
)

const kindInternal = "Internal"

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict, domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": {"kind", "message"}}. Unkinded errors
// are logged and hidden behind a generic message.
func writeError(c *gin.Context, log logrus.FieldLogger, err error) {
	body := publicError(log.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}), err)
	c.AbortWithStatusJSON(statusFor(domain.KindOf(err)), gin.H{"error": body})
}

// publicError is what a client may see of err. Unkinded errors are logged
// and replaced by a generic message.
func publicError(log logrus.FieldLogger, err error) errorBody {
	kind := domain.KindOf(err)
	if kind == "" {
		log.WithError(err).Error("request failed")
		return errorBody{Kind: kindInternal, Message: "internal server error"}
	}
	return errorBody{Kind: string(kind), Message: err.Error()}
}
