package main

import (
	"context"
	"crypto/subtle"
	"net/http"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf"
	csrfFieldName     = "csrf_token"
)

type sessionContextKey struct{}

// session returns the visitor's session. Visitors without a cookie, or whose
// session is unknown to the token store, get an anonymous session.
func (b *Blog) session(r *http.Request) (*Session, error) {
	if s, ok := r.Context().Value(sessionContextKey{}).(*Session); ok {
		return s, nil
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return &Session{}, nil
	}

	token, err := b.tokens.Get(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	return &Session{ID: cookie.Value, token: token}, nil
}

// startSession stores token under a fresh session id and sets the cookie.
func (b *Blog) startSession(w http.ResponseWriter, r *http.Request, token string) error {
	if old, err := r.Cookie(sessionCookieName); err == nil && old.Value != "" {
		if err := b.tokens.Remove(r.Context(), old.Value); err != nil {
			return err
		}
		b.dashboards.forget(old.Value)
	}

	id, err := generateToken()
	if err != nil {
		return err
	}
	if err := b.tokens.Set(r.Context(), id, token); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   b.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(b.sessionTTL.Seconds()),
	})
	return nil
}

// endSession removes the stored token unconditionally and expires the cookie.
func (b *Blog) endSession(w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := b.tokens.Remove(r.Context(), cookie.Value); err != nil {
			return err
		}
		b.dashboards.forget(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   b.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return nil
}

// CSRF protection using double-submit cookie pattern

func (b *Blog) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Secure:   b.secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(b.sessionTTL.Seconds()),
	})
}

func getCSRFToken(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func validateCSRF(r *http.Request) bool {
	cookieToken := getCSRFToken(r)
	formToken := r.FormValue(csrfFieldName)

	if cookieToken == "" || formToken == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(formToken)) == 1
}

func parseFormWithCSRF(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return false
	}
	if !validateCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return false
	}
	return true
}

// ensureCSRFToken returns existing token or creates a new one
func (b *Blog) ensureCSRFToken(w http.ResponseWriter, r *http.Request) string {
	token := getCSRFToken(r)
	if token != "" {
		return token
	}

	token, err := generateToken()
	if err != nil {
		return ""
	}
	b.setCSRFCookie(w, token)
	return token
}

// requireAuth gates admin pages on the presence of an API token. It runs on
// every request, so a token removed mid-session gates the next one.
func (b *Blog) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := b.session(r)
		if err != nil {
			b.logger.Warn("reading session", "error", err)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if !session.IsAuthenticated() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
		next(w, r.WithContext(ctx))
	}
}

func (b *Blog) Login(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title": "Admin Login",
		"Email": "",
	}

	if r.Method == http.MethodPost {
		if !parseFormWithCSRF(w, r) {
			return
		}

		email := r.FormValue("email")
		password := r.FormValue("password")
		data["Email"] = email

		resp, err := b.api.Login(r.Context(), email, password)
		if err == nil {
			if err = b.startSession(w, r, resp.Token); err != nil {
				b.serverError(w, "starting session", err)
				return
			}
			b.logger.Info("admin logged in", "user_id", resp.User.ID, "role", resp.User.Role)
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
		data["Error"] = b.apiError(r, err, "Login failed")
	}

	data["CSRFToken"] = b.ensureCSRFToken(w, r)
	b.render(w, "login.html", data)
}

func (b *Blog) Logout(w http.ResponseWriter, r *http.Request) {
	if !parseFormWithCSRF(w, r) {
		return
	}

	if err := b.endSession(w, r); err != nil {
		b.serverError(w, "ending session", err)
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
