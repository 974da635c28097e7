// Package codegate contains the version number and shared constants of the
// challenge-code verification gate.
package codegate

import "time"

// Version is the current version of codegate.
//
// This variable is set at build time using the -X linker flag. If not set,
// it defaults to "devel".
var Version = "devel"

// CookieName is the name of the cookie that carries the signed session
// reference.
var CookieName = "techaro.lol-codegate-session"

// WithDomainCookieName is the prefix of the session cookie when a cookie
// domain is configured.
var WithDomainCookieName = "techaro.lol-codegate-session-for-"

// BasePrefix is the mount prefix codegate is served under, e.g. /myapp.
var BasePrefix = ""

// CodePath is the path prefix of the challenge issuance endpoint. The
// challenge type is the final path segment.
const CodePath = "/code/"

// SessionDefaultExpirationTime is how long an idle server-side session lives.
const SessionDefaultExpirationTime = 30 * time.Minute
