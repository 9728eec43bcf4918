package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mercato-labs/mercato-backend/internal/auth"
	"github.com/mercato-labs/mercato-backend/internal/users"
	pkgerrors "github.com/mercato-labs/mercato-backend/pkg/errors"
)

type stubRegisterService struct {
	err error
}

func (s stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &auth.RegisterResponse{User: testUserDTO()}, nil
}

type stubAdminRegisterService struct {
	user *users.UserDTO
	err  error
}

func (s stubAdminRegisterService) Register(ctx context.Context, req auth.AdminRegisterRequest) (*users.UserDTO, error) {
	return s.user, s.err
}

func TestAuthRegisterSuccess(t *testing.T) {
	loginResp := &auth.LoginResponse{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User:         testUserDTO(),
	}
	handler := AuthRegister(stubRegisterService{}, stubAuthService{resp: loginResp}, nil)

	body := []byte(`{"first_name":"Alice","last_name":"Reyes","email":"alice@example.com","password":"Secret123!"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.AccessToken != "access-token" {
		t.Fatalf("expected access token got %s", envelope.Data.AccessToken)
	}
}

func TestAuthRegisterPropagatesConflict(t *testing.T) {
	handler := AuthRegister(stubRegisterService{err: pkgerrors.New(pkgerrors.CodeConflict, "email already registered")}, stubAuthService{}, nil)

	body := []byte(`{"first_name":"Alice","last_name":"Reyes","email":"alice@example.com","password":"Secret123!"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
}

func TestAuthRegisterInvalidPayload(t *testing.T) {
	handler := AuthRegister(stubRegisterService{}, stubAuthService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader([]byte(`{"password":"Secret123!"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminAuthRegisterSuccess(t *testing.T) {
	handler := AdminAuthRegister(stubAdminRegisterService{user: testUserDTO()}, nil)

	body := []byte(`{"first_name":"Admin","last_name":"User","email":"admin@example.com","password":"Secret#1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			User *users.UserDTO `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.User == nil || envelope.Data.User.Email != "alice@example.com" {
		t.Fatalf("expected user in payload got %+v", envelope.Data.User)
	}
}

func TestAdminAuthRegisterInvalidPayload(t *testing.T) {
	handler := AdminAuthRegister(stubAdminRegisterService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/register", bytes.NewReader([]byte(`{"password":"Secret#1"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
