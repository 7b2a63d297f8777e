// Package token issues LiveKit access tokens for a room, either by asking the
// configured backend endpoint or by signing them locally.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmisol/vidportal/defs"
	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/valyala/fasthttp"
)

const (
	lifetime       = 2 * time.Hour
	defaultTimeout = 10 * time.Second
)

// Source gives a token to join the named room.
type Source interface {
	Fetch(ctx context.Context, room string) (string, error)
}

// New prefers the backend endpoint and falls back to local signing.
func New(c *defs.PortalConf) (Source, error) {
	if c.ApiUrl != "" {
		return NewClient(c.ApiUrl, c.AuthToken, c.Origin), nil
	}
	if c.Key != "" && c.Secret != "" {
		return &Signer{Key: c.Key, Secret: c.Secret}, nil
	}
	return nil, errors.New("neither api_url nor livekit key/secret configured")
}

type request struct {
	RoomName string `json:"room_name"`
}

type response struct {
	Result struct {
		Token string `json:"token"`
	} `json:"result"`
}

type Client struct {
	Url    string
	Bearer string
	Origin string

	hc *fasthttp.Client
}

func NewClient(url, bearer, origin string) *Client {
	return &Client{
		Url:    url,
		Bearer: bearer,
		Origin: origin,
		hc:     &fasthttp.Client{},
	}
}

func (c *Client) Fetch(ctx context.Context, room string) (token string, err error) {
	body, err := json.Marshal(request{RoomName: room})
	if err != nil {
		return
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.Url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.Bearer != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+c.Bearer)
	}
	if c.Origin != "" {
		req.Header.Set(fasthttp.HeaderOrigin, c.Origin)
	}
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	if err = c.hc.DoDeadline(req, resp, deadline); err != nil {
		err = fmt.Errorf("%w: token request: %v", defs.ErrNetwork, err)
		return
	}

	code := resp.StatusCode()
	switch {
	case code == fasthttp.StatusUnauthorized || code == fasthttp.StatusForbidden:
		err = fmt.Errorf("%w: token request failed: %s", defs.ErrAuth, fasthttp.StatusMessage(code))
		return
	case code < 200 || code >= 300:
		err = fmt.Errorf("%w: token request failed: %s", defs.ErrNetwork, fasthttp.StatusMessage(code))
		return
	}

	var r response
	if err = json.Unmarshal(resp.Body(), &r); err != nil {
		err = fmt.Errorf("token response: %w", err)
		return
	}
	if r.Result.Token == "" {
		err = errors.New("token response carries no token")
		return
	}
	token = r.Result.Token
	return
}

// Signer makes tokens with the LiveKit api key and secret.
type Signer struct {
	Key, Secret string
	// Identity of the participant, a random one is made per token when empty.
	Identity string
	Name     string
}

func (s *Signer) Fetch(ctx context.Context, room string) (string, error) {
	return s.Sign(lifetime, room)
}

func (s *Signer) Sign(validFor time.Duration, room string) (token string, err error) {
	canPublish := true
	canSubscribe := true

	at := auth.NewAccessToken(s.Key, s.Secret)
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         room,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}

	id := s.Identity
	if id == "" {
		id = "vidportal-" + uuid.NewString()[:8]
	}
	at.AddGrant(grant).SetIdentity(id).SetValidFor(validFor)
	if len(s.Name) > 0 {
		at.SetName(s.Name)
	}

	token, err = at.ToJWT()
	return
}
