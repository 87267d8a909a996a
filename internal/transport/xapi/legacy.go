package xapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"chirpd/internal/transport"
)

// Legacy posts through the v1.1 form API. Some access tiers that reject
// v2 writes still accept it, so it is the fallback path.
type Legacy struct {
	*client
}

func (l *Legacy) Name() string { return "legacy" }

type updateStatusResponse struct {
	IDStr string `json:"id_str"`
}

func (l *Legacy) Post(ctx context.Context, text string) (transport.PostReceipt, error) {
	form := url.Values{}
	form.Set("status", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		l.base+"/1.1/statuses/update.json", strings.NewReader(form.Encode()))
	if err != nil {
		return transport.PostReceipt{}, &transport.Error{Channel: l.Name(), Kind: transport.KindOther, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := l.do(req, l.Name())
	if err != nil {
		return transport.PostReceipt{}, err
	}

	var out updateStatusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return transport.PostReceipt{}, &transport.Error{Channel: l.Name(), Kind: transport.KindOther, Err: err}
	}
	if out.IDStr == "" {
		return transport.PostReceipt{}, &transport.Error{Channel: l.Name(), Kind: transport.KindOther, Err: errEmptyResponse}
	}
	return transport.PostReceipt{Channel: l.Name(), ID: out.IDStr}, nil
}
