package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"chirpd/internal/transport"
)

// Rich posts through the v2 JSON API. It is the most capable path and is
// tried first.
type Rich struct {
	*client
}

func (r *Rich) Name() string { return "rich" }

type createPostRequest struct {
	Text string `json:"text"`
}

type createPostResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

func (r *Rich) Post(ctx context.Context, text string) (transport.PostReceipt, error) {
	payload, err := json.Marshal(createPostRequest{Text: text})
	if err != nil {
		return transport.PostReceipt{}, &transport.Error{Channel: r.Name(), Kind: transport.KindOther, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return transport.PostReceipt{}, &transport.Error{Channel: r.Name(), Kind: transport.KindOther, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := r.do(req, r.Name())
	if err != nil {
		return transport.PostReceipt{}, err
	}

	var out createPostResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return transport.PostReceipt{}, &transport.Error{Channel: r.Name(), Kind: transport.KindOther, Err: err}
	}
	if out.Data.ID == "" {
		return transport.PostReceipt{}, &transport.Error{Channel: r.Name(), Kind: transport.KindOther, Err: errEmptyResponse}
	}
	return transport.PostReceipt{Channel: r.Name(), ID: out.Data.ID}, nil
}
