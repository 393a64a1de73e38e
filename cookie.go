package goSession

import (
	"net/http"
	"time"
)

// Token returns the refresh credential carried by r, or "" when absent.
func (c CookieConfig) Token(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// Set writes token as the HttpOnly refresh cookie.
func (c CookieConfig) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(token, int(c.MaxAge/time.Second)))
}

// Clear expires the refresh cookie on the client.
func (c CookieConfig) Clear(w http.ResponseWriter) {
	ck := c.cookie("", -1)
	ck.Expires = time.Unix(0, 0)
	http.SetCookie(w, ck)
}

func (c CookieConfig) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    value,
		Path:     c.Path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}
