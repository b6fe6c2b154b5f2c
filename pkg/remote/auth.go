package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/garnizeh/contactdesk/pkg/models"
)

type LoginResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    models.User `json:"user"`
	Message string      `json:"message,omitempty"`
}

type CheckAuthResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
	Message string       `json:"message,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login posts credentials. It does not touch the session; see pkg/auth.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	raw, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/admin/login",
		Body:   loginRequest{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}

	var resp LoginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	return &resp, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/admin/logout", Protected: true})
	return err
}

func (c *Client) CheckAuth(ctx context.Context) (*CheckAuthResponse, error) {
	raw, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/admin/check-auth", Protected: true})
	if err != nil {
		return nil, err
	}

	var resp CheckAuthResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode check-auth response: %w", err)
	}
	return &resp, nil
}
