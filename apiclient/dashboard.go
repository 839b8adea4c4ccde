package apiclient

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/go-dashboard-client/session"
	"github.com/pkg/errors"
)

// Dashboard endpoints used by the session controller.
const (
	LoginEndpoint   = "/api/login"
	ProfileEndpoint = "/api/me"
)

// DashboardAPI wraps Client with the typed session endpoints.
type DashboardAPI struct {
	client *Client
}

func NewDashboardAPI(client *Client) *DashboardAPI {
	return &DashboardAPI{client: client}
}

// Login exchanges credentials for a token and the user profile.
func (a *DashboardAPI) Login(ctx context.Context, email, password string) (*session.LoginResult, error) {
	raw, err := a.client.Post(ctx, LoginEndpoint, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[DashboardAPI.Login] post")
	}

	var result session.LoginResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Wrap(err, "[DashboardAPI.Login] decode response")
	}
	if result.Token == "" || result.User == nil {
		return nil, errors.New("[DashboardAPI.Login] incomplete login response")
	}
	return &result, nil
}

// Profile fetches the profile of the user owning the current token.
func (a *DashboardAPI) Profile(ctx context.Context) (*session.User, error) {
	raw, err := a.client.Get(ctx, ProfileEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, "[DashboardAPI.Profile] get")
	}

	var user session.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, errors.Wrap(err, "[DashboardAPI.Profile] decode response")
	}
	return &user, nil
}
