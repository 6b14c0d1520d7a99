package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/stayware/identity-context-service/infra/log/slogx"
	"github.com/stayware/identity-context-service/infra/x/logx"
	"github.com/stayware/identity-context-service/internal/errors"
	"github.com/stayware/identity-context-service/internal/model"
)

// RequestTimeout bounds any single identity-provider exchange.
const RequestTimeout = 10 * time.Second

// Identity Provider (Service) Client.
// Bearer-token session lifecycle against the platform's auth endpoint.
type Client struct {
	base   *url.URL
	apiKey string
	logger *slog.Logger
	client *http.Client
}

func NewClient(logger *slog.Logger, baseURL, apiKey string) (*Client, error) {

	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, err
	}

	return &Client{
		base:   base,
		apiKey: apiKey,
		logger: logx.ModuleLogger("idp-client", logger),
		client: &http.Client{
			Timeout:   RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// grant response of the [token] endpoint
type grantResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds ; optional
	RefreshToken string `json:"refresh_token"`
	User         struct {
		Id string `json:"id"`
	} `json:"user"`
}

type errorResponse struct {
	Code    string `json:"error_code"`
	Message string `json:"msg"`
	Error_  string `json:"error"`
}

// Refresh exchanges a refresh token for a new session grant.
// NOT coalesced here ; the session store single-flights callers.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {

	if refreshToken == "" {
		return nil, errors.ErrInvalidToken(
			errors.Message("idp: refresh token required"),
		)
	}

	body, _ := json.Marshal(map[string]string{
		"refresh_token": refreshToken,
	})

	var grant grantResponse
	err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &grant)

	if err != nil {
		// token-class failures are terminal for this refresh token
		if errors.ClassOf(err) == errors.InvalidToken {
			return nil, errors.ErrRefreshFailed(errors.Cause(err))
		}
		return nil, err
	}

	session := &model.Session{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		TokenType:    grant.TokenType,
		UserID:       grant.User.Id,
	}

	now := model.LocalTime.Now()
	switch {
	case grant.ExpiresAt > 0:
		session.ExpiresAt = time.Unix(grant.ExpiresAt, 0)
	case grant.ExpiresIn > 0:
		session.ExpiresAt = now.Add(time.Duration(grant.ExpiresIn) * time.Second)
	default:
		// provider was silent ; introspect the [exp] claim
		session.ExpiresAt, _ = model.TokenExpiry(grant.AccessToken)
	}
	if session.UserID == "" {
		session.UserID, _ = model.TokenSubject(grant.AccessToken)
	}

	c.logger.Debug("idp: session refreshed",
		"user.id", session.UserID,
		"expires_at", session.ExpiresAt,
		"token", slogx.DeferValue(func() slog.Value {
			return slog.StringValue(slogx.SecureString(session.AccessToken))
		}),
	)

	return session, session.Verify(now)
}

// SignOut revokes the session grant at the identity provider.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

// user record of the [user] endpoint
type userResponse struct {
	Id       string `json:"id"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Metadata struct {
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

// User resolves the bearer identity at the identity provider.
// Fallback profile source when the directory record is unavailable.
func (c *Client) User(ctx context.Context, accessToken string) (*model.UserIdentity, error) {

	if accessToken == "" {
		return nil, errors.ErrNoSession()
	}

	var user userResponse
	err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &user)
	if err != nil {
		return nil, err
	}

	return &model.UserIdentity{
		Id:        user.Id,
		Name:      user.Metadata.FullName,
		Email:     user.Email,
		Phone:     user.Phone,
		AvatarURL: user.Metadata.AvatarURL,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body []byte, out any) error {

	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	var payload io.Reader
	if body != nil {
		payload = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(
		ctx, method, c.base.String()+path, payload,
	)
	if err != nil {
		return errors.FromError(err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return errors.FromError(err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return c.failure(res)
	}

	if out != nil {
		if err = json.NewDecoder(res.Body).Decode(out); err != nil {
			return errors.ErrUnknown(
				errors.Message("idp: malformed response"),
				errors.Cause(err),
			)
		}
	}

	return nil
}

func (c *Client) failure(res *http.Response) error {

	var fail errorResponse
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	_ = json.Unmarshal(data, &fail)

	message := fail.Message
	if message == "" {
		message = fail.Error_
	}
	if message == "" {
		message = res.Status
	}

	code := errors.FromStatusCode(res.StatusCode)
	return errors.New(code,
		errors.Message("idp: %s", message),
	)
}
