package api

import (
	"context"
	"net/http"
)

// Login exchanges credentials for tokens and the user profile.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	req, err := jsonRequest(http.MethodPost, "/users/login/", map[string]string{
		"email":    creds.Email,
		"password": creds.Password.Value(),
	}, loginMessages)
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, reg Registration) (*User, error) {
	f := newForm()
	fields := []struct{ name, value string }{
		{"email", reg.Email},
		{"username", reg.Username},
		{"password", reg.Password.Value()},
		{"first_name", reg.FirstName},
		{"last_name", reg.LastName},
		{"bio", reg.Bio},
	}
	for _, fld := range fields {
		if fld.value == "" {
			continue
		}
		if err := f.field(fld.name, fld.value); err != nil {
			return nil, &Error{Kind: KindUnexpected, Message: signupMessages.Default, Err: err}
		}
	}
	if reg.ProfilePicture != nil {
		if err := f.file("profile_picture", *reg.ProfilePicture); err != nil {
			return nil, &Error{Kind: KindUnexpected, Message: signupMessages.Default, Err: err}
		}
	}
	body, contentType, length, err := f.close()
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Message: signupMessages.Default, Err: err}
	}

	var out User
	err = c.do(ctx, &request{
		method:      http.MethodPost,
		path:        "/users/register/",
		body:        body,
		length:      length,
		contentType: contentType,
		msgs:        signupMessages,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, &request{method: http.MethodGet, path: "/users/me/", msgs: profileMessages}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMe patches the current user's profile.
func (c *Client) UpdateMe(ctx context.Context, upd ProfileUpdate) (*User, error) {
	req, err := jsonRequest(http.MethodPatch, "/users/me/", upd, profileUpdateMessages)
	if err != nil {
		return nil, err
	}
	var out User
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
