package auth

import (
	"net/http"
	"strings"
)

// RequestIsSecure reports whether the request arrived over an encrypted
// transport, either directly or via the platform's TLS-terminating proxy.
func RequestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// CookieValue returns the named cookie's value, or "" when absent.
func CookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   RequestIsSecure(r),
	})
}

// SetSessionCookie installs the auth session cookie for the session TTL.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	setCookie(w, r, SessionCookie, token, int(SessionTTL.Seconds()))
}

// ClearSessionCookie expires the auth session cookie.
func ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	setCookie(w, r, SessionCookie, "", -1)
}

// SetTransactionCookies installs the short-lived OAuth state and next-path
// cookies for the login redirect.
func SetTransactionCookies(w http.ResponseWriter, r *http.Request, state, next string) {
	ttl := int(TransactionTTL.Seconds())
	setCookie(w, r, StateCookie, state, ttl)
	setCookie(w, r, NextCookie, next, ttl)
}

// ClearTransactionCookies expires both OAuth transaction cookies. Called on
// every callback outcome, success or failure.
func ClearTransactionCookies(w http.ResponseWriter, r *http.Request) {
	setCookie(w, r, StateCookie, "", -1)
	setCookie(w, r, NextCookie, "", -1)
}
