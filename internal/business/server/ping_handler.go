package server

import (
	"net/http"
)

func pingHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		_, _ = w.Write([]byte("{ \"result\": \"ping\" }"))
	}
}
