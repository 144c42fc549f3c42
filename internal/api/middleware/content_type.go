package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/routedesk/routedesk/internal/api/models"
)

// ContentTypeJSON defaults the response Content-Type to application/json.
// Export and map handlers set their own type first.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON answers 415 when a request with a body declares a media type
// other than application/json or a structured "+json" type. A missing
// Content-Type passes; session actions are posted without a body.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasBody(r.Method) || isJSON(r.Header.Get("Content-Type")) {
			next.ServeHTTP(w, r)
			return
		}

		problem := models.NewUnsupportedMediaType(
			GetRequestID(r.Context()),
			"Content-Type must be application/json",
		)
		problem.Instance = r.URL.Path
		problem.Write(w)
	})
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" ||
		(strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json"))
}
