package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cyverse-de/placement-notifier/model"
	"github.com/stretchr/testify/assert"
)

// MockBinder records the calls made by the session endpoints.
type MockBinder struct {
	Bound         []*model.Identity
	ReleaseCalled bool
}

// Bind records the identity.
func (b *MockBinder) Bind(identity *model.Identity) {
	b.Bound = append(b.Bound, identity)
}

// Release records the fact that it was called.
func (b *MockBinder) Release() {
	b.ReleaseCalled = true
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestBindSession(t *testing.T) {
	assert := assert.New(t)
	binder := &MockBinder{}
	router := newRouter(binder)

	rec := serve(router, http.MethodPut, "/session", `{"user": "student@example.edu", "token": "t1"}`)
	assert.Equal(http.StatusAccepted, rec.Code)
	if assert.Len(binder.Bound, 1) {
		assert.Equal(model.Identity{User: "student@example.edu", Token: "t1"}, *binder.Bound[0])
	}
}

func TestBindSessionInvalid(t *testing.T) {
	assert := assert.New(t)
	binder := &MockBinder{}
	router := newRouter(binder)

	rec := serve(router, http.MethodPut, "/session", `{"user": "student@example.edu"`)
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPut, "/session", `{"user": "student", "token": "t1"}`)
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPut, "/session", `{"user": "student@example.edu", "token": ""}`)
	assert.Equal(http.StatusBadRequest, rec.Code)

	assert.Empty(binder.Bound, "an invalid session was bound")
}

func TestReleaseSession(t *testing.T) {
	binder := &MockBinder{}
	rec := serve(newRouter(binder), http.MethodDelete, "/session", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, binder.ReleaseCalled)
}

func TestHealthz(t *testing.T) {
	rec := serve(newRouter(&MockBinder{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
