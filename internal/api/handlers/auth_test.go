package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chathub/internal/auth"
	"chathub/internal/models"
	"chathub/pkg/logger"
)

type stubUserStore struct {
	users      map[string]*models.User
	failCreate bool
}

func (s *stubUserStore) CreateUser(_ context.Context, user *models.User) error {
	if s.failCreate {
		return errors.New("insert failed")
	}
	s.users[user.Email] = user
	return nil
}

func (s *stubUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := s.users[email]; ok {
		return user, nil
	}
	return nil, models.ErrNotFound
}

func (s *stubUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *stubUserStore) UpdateUser(_ context.Context, user *models.User) error {
	s.users[user.Email] = user
	return nil
}

type noopMail struct{}

func (noopMail) PublishMail(_ context.Context, _, _, _ string) error { return nil }

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &stubUserStore{users: make(map[string]*models.User)}
	svc := auth.NewService(store, noopMail{}, "secret", time.Hour, time.Minute, logger.New("error"))
	router := gin.New()
	router.POST("/auth/register", NewAuthHandler(svc).Register)

	body := `{"name":"Alice","email":"alice@example.com","password":"s3cret"}`
	rec := postJSON(router, "/auth/register", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("DuplicateEmailIsValidation", func(t *testing.T) {
		rec := postJSON(router, "/auth/register", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "user already exists")
	})

	t.Run("StorageFailureIsInternal", func(t *testing.T) {
		store.failCreate = true
		rec := postJSON(router, "/auth/register",
			`{"name":"Bob","email":"bob@example.com","password":"s3cret"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
