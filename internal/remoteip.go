package internal

import (
	"net"
	"net/http"

	"github.com/sebest/xff"
)

// RemoteIP returns the caller IP used in audit context. An explicit
// X-Real-Ip set by a trusted front proxy wins, then the X-Forwarded-For
// chain, then the socket address.
func RemoteIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}

	addr := xff.GetRemoteAddr(r)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}

	return addr
}

// RemoteXRealIP sets X-Real-Ip from the socket address when codegate runs
// without a reverse proxy in front of it.
func RemoteXRealIP(useRemoteAddress bool, next http.Handler) http.Handler {
	if !useRemoteAddress {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		r.Header.Set("X-Real-Ip", host)
		next.ServeHTTP(w, r)
	})
}
