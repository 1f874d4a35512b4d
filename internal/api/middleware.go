package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/taskyard/internal/auth"
	"github.com/zulandar/taskyard/internal/errs"
)

const (
	callerKey         = "taskyard.caller"
	processTimeHeader = "X-Process-Time"
)

// timedWriter stamps the elapsed time on the response just before the
// status line goes out.
type timedWriter struct {
	gin.ResponseWriter
	start time.Time
}

func (w *timedWriter) WriteHeader(code int) {
	if !w.Written() {
		w.Header().Set(processTimeHeader, strconv.FormatFloat(time.Since(w.start).Seconds(), 'f', 6, 64))
	}
	w.ResponseWriter.WriteHeader(code)
}

// requestLogger logs one line per request and sets X-Process-Time.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Writer = &timedWriter{ResponseWriter: c.Writer, start: start}

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   status,
			"duration": time.Since(start),
		})
		if caller, ok := c.Get(callerKey); ok {
			entry = entry.WithField("user_id", caller.(auth.Caller).UserID)
		}
		switch {
		case status >= http.StatusInternalServerError:
			if err := c.Errors.Last(); err != nil {
				entry = entry.WithError(err.Err)
			}
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request")
		}
	}
}

// authenticate resolves the bearer token into a caller for the handlers.
func authenticate(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		caller, err := authn.ResolveCaller(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !callerFrom(c).IsAdmin() {
			abortWithError(c, fmt.Errorf("api: admin role required: %w", errs.ErrAccessDenied))
			return
		}
		c.Next()
	}
}

func callerFrom(c *gin.Context) auth.Caller {
	v, _ := c.Get(callerKey)
	caller, _ := v.(auth.Caller)
	return caller
}

type errorBody struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// abortWithError writes the JSON error body for err. Errors without a known
// kind are hidden behind a generic message and kept on the context for the
// request logger.
func abortWithError(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.Error(err)
	c.AbortWithStatusJSON(status, errorBody{Error: msg, StatusCode: status})
}
