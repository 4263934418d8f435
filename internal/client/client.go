// Package client is a typed HTTP client for the account API.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopfront/accounts/internal/models"
)

// APIError is a failure reported by the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Client calls the account API. The session is kept in a cookie jar and as a bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// New creates a client for the API rooted at baseURL, e.g. http://localhost:8080/api/v1.
// "token" resumes a previous session and may be empty.
func New(baseURL, token string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		token: token,
	}, nil
}

// Token returns the current session token
func (c *Client) Token() string {
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp models.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Message == "" {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return &APIError{Status: resp.StatusCode, Message: errResp.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) session(ctx context.Context, method, path string, body any) (*models.SessionResponse, error) {
	var resp models.SessionResponse
	if err := c.do(ctx, method, path, body, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// AvatarDataURI encodes image bytes the way the register and profile forms send them
func AvatarDataURI(data []byte) string {
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type registerBody struct {
	models.RegisterRequest
	Avatar string `json:"avatar,omitempty"`
}

type updateProfileBody struct {
	models.UpdateProfileRequest
	Avatar string `json:"avatar,omitempty"`
}

// Register creates an account and signs it in. "avatar" is a data URI.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest, avatar string) (*models.SessionResponse, error) {
	return c.session(ctx, http.MethodPost, "/register", registerBody{RegisterRequest: req, Avatar: avatar})
}

// Login signs in with email and password
func (c *Client) Login(ctx context.Context, email, password string) (*models.SessionResponse, error) {
	return c.session(ctx, http.MethodPost, "/login", models.LoginRequest{Email: email, Password: password})
}

// Logout ends the session
func (c *Client) Logout(ctx context.Context) (string, error) {
	var resp models.SuccessResponse
	if err := c.do(ctx, http.MethodGet, "/logout", nil, &resp); err != nil {
		return "", err
	}
	c.token = ""
	return resp.Message, nil
}

// ForgotPassword requests a reset email and returns the confirmation message
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp models.SuccessResponse
	if err := c.do(ctx, http.MethodPost, "/password/forgot", models.ForgotPasswordRequest{Email: email}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ResetPassword sets a new password with an emailed reset token
func (c *Client) ResetPassword(ctx context.Context, token, password, confirmPassword string) (*models.SessionResponse, error) {
	req := models.ResetPasswordRequest{Password: password, ConfirmPassword: confirmPassword}
	return c.session(ctx, http.MethodPut, "/password/reset/"+url.PathEscape(token), req)
}

// UpdatePassword changes the password of the signed-in user
func (c *Client) UpdatePassword(ctx context.Context, req models.UpdatePasswordRequest) (*models.SessionResponse, error) {
	return c.session(ctx, http.MethodPut, "/password/update", req)
}

// Me returns the signed-in user
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var resp models.UserResponse
	if err := c.do(ctx, http.MethodGet, "/me", nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// UpdateProfile updates name and email, and the avatar when "avatar" is a non-empty data URI
func (c *Client) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest, avatar string) error {
	return c.do(ctx, http.MethodPut, "/me/update", updateProfileBody{UpdateProfileRequest: req, Avatar: avatar}, nil)
}

// ListUsers returns a page of users. Zero page and count use the server defaults.
func (c *Client) ListUsers(ctx context.Context, q models.UserListQuery) (*models.UserListResponse, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Count > 0 {
		params.Set("count", strconv.Itoa(q.Count))
	}
	if q.Role != nil {
		params.Set("role", string(*q.Role))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	path := "/admin/users"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp models.UserListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetUser returns a user by id
func (c *Client) GetUser(ctx context.Context, id string) (*models.User, error) {
	var resp models.UserResponse
	if err := c.do(ctx, http.MethodGet, "/admin/user/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// UpdateRole sets name, email and role of a user
func (c *Client) UpdateRole(ctx context.Context, id string, req models.UpdateRoleRequest) error {
	return c.do(ctx, http.MethodPut, "/admin/user/"+url.PathEscape(id), req, nil)
}

// DeleteUser removes a user and returns the confirmation message
func (c *Client) DeleteUser(ctx context.Context, id string) (string, error) {
	var resp models.SuccessResponse
	if err := c.do(ctx, http.MethodDelete, "/admin/user/"+url.PathEscape(id), nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
