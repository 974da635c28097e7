package internal

import "net/http"

// NoStoreCache sets the Cache-Control header to no-store for the response.
// Issued challenges must never be served from a shared cache.
func NoStoreCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
