// Package groww implements the HTTP client for the Groww live-data API and
// instrument catalog.
package groww

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantedge/quotegate/config"
	"github.com/quantedge/quotegate/errs"
	"github.com/quantedge/quotegate/internal/observability"
	"github.com/quantedge/quotegate/schema"
)

const apiVersion = "1.0"

// TokenSource supplies the bearer token used to authenticate upstream calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token. An empty token fails every call
// with an authentication error rather than sending unauthenticated requests.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", errs.New(errs.KindAuthenticationFailed,
			errs.WithMessage("access token not configured"),
		)
	}
	return token, nil
}

// Client talks to the Groww quote API and instrument catalog endpoint.
type Client struct {
	quoteBaseURL   string
	instrumentsURL string
	http           *http.Client
	tokens         TokenSource
}

// NewClient builds a client from transport settings and a token source.
func NewClient(cfg config.GrowwSettings, tokens TokenSource) *Client {
	return &Client{
		quoteBaseURL:   strings.TrimRight(cfg.QuoteBaseURL, "/"),
		instrumentsURL: cfg.InstrumentsURL,
		http:           &http.Client{Timeout: cfg.HTTPTimeout},
		tokens:         tokens,
	}
}

// FetchInstruments downloads and parses the full instrument catalog. Rows
// that fail validation are dropped and counted, never fatal.
func (c *Client) FetchInstruments(ctx context.Context) ([]schema.Instrument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.instrumentsURL, nil)
	if err != nil {
		return nil, errs.New(errs.KindValidation,
			errs.WithMessage("invalid instruments url"),
			errs.WithCause(err),
		)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.Stats().UpstreamCall("error")
		return nil, errs.New(errs.KindUpstreamUnavailable,
			errs.WithMessage("instrument catalog unreachable"),
			errs.WithCause(err),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.Stats().UpstreamCall("error")
		return nil, statusError(resp.StatusCode, "instrument catalog request failed")
	}
	observability.Stats().UpstreamCall("ok")

	instruments, dropped, err := parseCatalog(resp.Body)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		observability.Log().Warn("dropped malformed catalog rows",
			observability.F("dropped", dropped),
			observability.F("kept", len(instruments)),
		)
	}
	return instruments, nil
}

func parseCatalog(r io.Reader) ([]schema.Instrument, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, errs.New(errs.KindUpstreamUnavailable,
			errs.WithMessage("instrument catalog is empty or unreadable"),
			errs.WithCause(err),
		)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"exchange", "trading_symbol", "segment"} {
		if _, ok := cols[required]; !ok {
			return nil, 0, errs.New(errs.KindUpstreamUnavailable,
				errs.WithMessage("instrument catalog missing column "+required),
			)
		}
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var (
		out     []schema.Instrument
		dropped int
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			dropped++
			continue
		}

		inst := schema.Instrument{
			Exchange:      schema.Exchange(field(row, "exchange")),
			Segment:       schema.Segment(field(row, "segment")),
			TradingSymbol: field(row, "trading_symbol"),
			GrowwSymbol:   field(row, "groww_symbol"),
			Name:          field(row, "name"),
			ISIN:          field(row, "isin"),
			ExchangeToken: field(row, "exchange_token"),
		}
		if v := strings.TrimSpace(field(row, "lot_size")); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				inst.LotSize = n
			}
		}
		if v := strings.TrimSpace(field(row, "tick_size")); v != "" {
			if d, err := decimal.NewFromString(v); err == nil {
				inst.TickSize = d
			}
		}

		if err := inst.Normalize(); err != nil {
			dropped++
			continue
		}
		out = append(out, inst)
	}
	return out, dropped, nil
}

type ltpResponse struct {
	Status  string                 `json:"status"`
	Payload map[string]json.Number `json:"payload"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// LTP fetches last traded prices for the given exchange-qualified symbols in
// one upstream call. The upstream batch endpoint is all-or-nothing: one
// unknown symbol fails the whole request.
func (c *Client) LTP(ctx context.Context, segment schema.Segment, exchangeSymbols []string) (map[string]json.Number, error) {
	if len(exchangeSymbols) == 0 {
		return map[string]json.Number{}, nil
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("segment", string(segment))
	q.Set("exchange_symbols", strings.Join(exchangeSymbols, ","))
	endpoint := c.quoteBaseURL + "/v1/live-data/ltp?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.New(errs.KindValidation,
			errs.WithMessage("invalid quote request"),
			errs.WithCause(err),
		)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-VERSION", apiVersion)
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		observability.Stats().UpstreamCall("error")
		return nil, errs.New(errs.KindUpstreamUnavailable,
			errs.WithMessage("quote endpoint unreachable"),
			errs.WithCause(err),
		)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		observability.Stats().UpstreamCall("error")
		return nil, errs.New(errs.KindUpstreamUnavailable,
			errs.WithMessage("quote response truncated"),
			errs.WithCause(err),
		)
	}

	if resp.StatusCode != http.StatusOK {
		observability.Stats().UpstreamCall("error")
		return nil, statusError(resp.StatusCode, upstreamMessage(body))
	}

	var parsed ltpResponse
	if err := gojson.Unmarshal(body, &parsed); err != nil {
		observability.Stats().UpstreamCall("error")
		return nil, errs.New(errs.KindUpstreamUnavailable,
			errs.WithMessage("quote response is not valid JSON"),
			errs.WithCause(err),
		)
	}
	if !strings.EqualFold(parsed.Status, "SUCCESS") {
		observability.Stats().UpstreamCall("error")
		msg := parsed.Error.Message
		if msg == "" {
			msg = "quote request rejected"
		}
		return nil, errs.New(errs.KindValidation,
			errs.WithMessage(msg),
			errs.WithHint("status "+parsed.Status),
		)
	}

	observability.Stats().UpstreamCall("ok")
	if parsed.Payload == nil {
		parsed.Payload = map[string]json.Number{}
	}
	return parsed.Payload, nil
}

func upstreamMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := gojson.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return ""
}

func statusError(status int, msg string) *errs.E {
	switch {
	case status == http.StatusUnauthorized:
		return errs.New(errs.KindAuthenticationFailed,
			errs.WithMessage(orDefault(msg, "authentication failed")),
			errs.WithUpstreamStatus(status),
		)
	case status == http.StatusForbidden:
		return errs.New(errs.KindPermissionDenied,
			errs.WithMessage(orDefault(msg, "Access forbidden")),
			errs.WithUpstreamStatus(status),
			errs.WithHint("verify the token has live-data entitlements"),
		)
	case status == http.StatusTooManyRequests:
		return errs.New(errs.KindRateLimited,
			errs.WithMessage(orDefault(msg, "rate limit exceeded")),
			errs.WithUpstreamStatus(status),
		)
	case status == http.StatusBadRequest:
		return errs.New(errs.KindValidation,
			errs.WithMessage(orDefault(msg, "request rejected by upstream")),
			errs.WithUpstreamStatus(status),
		)
	case status >= 500:
		return errs.New(errs.KindUpstreamUnavailable,
			errs.WithMessage(orDefault(msg, "upstream server error")),
			errs.WithUpstreamStatus(status),
		)
	default:
		return errs.New(errs.KindUpstreamUnavailable,
			errs.WithMessage(orDefault(msg, fmt.Sprintf("unexpected upstream status %d", status))),
			errs.WithUpstreamStatus(status),
		)
	}
}

func orDefault(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}
