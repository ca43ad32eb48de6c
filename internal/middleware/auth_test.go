package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmeshcher/market-system/internal/model"
)

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			t.Fatalf("user id not in context")
		}
		if id != 42 {
			t.Fatalf("user id from context = %d, want 42", id)
		}
		role, ok := GetRoleFromContext(r.Context())
		if !ok || role != model.RoleUser {
			t.Fatalf("role from context = %q, want user", role)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	m.SetAuthCookie(w, 42, model.RoleUser)
	res := w.Result()
	resCookies := res.Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}

	r.AddCookie(resCookies[0])

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithoutCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	handler := m.Middleware(next)
	handler.ServeHTTP(w, r)

	res := w.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_TamperedRole(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	w := httptest.NewRecorder()
	m.SetAuthCookie(w, 42, model.RoleUser)
	cookie := w.Result().Cookies()[0]

	// Подпись покрывает роль: замена user на admin должна ломать cookie.
	cookie.Value = "42:admin." + cookie.Value[len("42:user."):]

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(cookie)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called for tampered cookie")
	})

	rec := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, r)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRequireAdmin(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	adminCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminCalled = true
	})
	handler := m.Middleware(m.RequireAdmin(next))

	w := httptest.NewRecorder()
	m.SetAuthCookie(w, 1, model.RoleUser)
	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.AddCookie(w.Result().Cookies()[0])

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("user role: status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
	if adminCalled {
		t.Fatalf("next handler called for non-admin")
	}

	w = httptest.NewRecorder()
	m.SetAuthCookie(w, 2, model.RoleAdmin)
	r = httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.AddCookie(w.Result().Cookies()[0])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if !adminCalled {
		t.Fatalf("next handler not called for admin")
	}
}
