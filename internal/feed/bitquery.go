// Package feed pulls CTF Exchange events from the Bitquery streaming
// API, either by polling the GraphQL endpoint or over a websocket
// subscription.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ctfradar/radar/internal/models"
)

const (
	DefaultAPIURL = "https://streaming.bitquery.io/graphql"

	// Polygon CTF Exchange contracts. Fills are emitted by both the
	// current and the legacy deployment.
	CTFExchangeAddress    = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
	LegacyExchangeAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
)

// Condition preparation contracts queried for question metadata.
var questionOracles = []string{
	"0x4d97dcd97ec945f40cf65f87097ace5ea0476045",
	"0x65070BE91477460D8A7AeEb94ef92fe056C2f2A7",
}

// ClientConfig configures the GraphQL client.
type ClientConfig struct {
	URL               string
	Token             string
	Network           string
	Dataset           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

func DefaultClientConfig(token string) *ClientConfig {
	return &ClientConfig{
		URL:               DefaultAPIURL,
		Token:             token,
		Network:           "matic",
		Dataset:           "realtime",
		RequestTimeout:    30 * time.Second,
		RequestsPerSecond: 2,
	}
}

// Client queries the Bitquery GraphQL API for raw exchange events.
type Client struct {
	config  *ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(config *ClientConfig, logger *slog.Logger) *Client {
	if config.URL == "" {
		config.URL = DefaultAPIURL
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 5),
		logger:  logger,
	}
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data struct {
		EVM struct {
			Events []models.RawEvent `json:"Events"`
		} `json:"EVM"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// FillQuery filters an OrderFilled event query.
type FillQuery struct {
	Limit      int
	SinceHours int

	// Trader restricts fills to those with this wallet on either leg.
	Trader string

	// AssetID restricts fills to those touching this outcome token.
	AssetID string
}

// RecentFills fetches OrderFilled events from the exchange contracts,
// newest first.
func (c *Client) RecentFills(ctx context.Context, q FillQuery) ([]models.RawEvent, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}

	var filters []string
	if q.SinceHours > 0 {
		filters = append(filters, fmt.Sprintf("Block: {Time: {since_relative: {hours_ago: %d}}}", q.SinceHours))
	}
	switch {
	case q.Trader != "":
		filters = append(filters, fmt.Sprintf(
			`Arguments: {includes: {Name: {in: ["maker", "taker"]}, Value: {Address: {is: %q}}}}`,
			strings.ToLower(q.Trader)))
	case q.AssetID != "":
		filters = append(filters, fmt.Sprintf(
			`Arguments: {includes: {Value: {BigInteger: {eq: %q}}}}`, q.AssetID))
	}
	filters = append(filters,
		`Log: {Signature: {Name: {in: ["OrderFilled"]}}}`,
		fmt.Sprintf(`LogHeader: {Address: {in: [%q, %q]}}`, CTFExchangeAddress, LegacyExchangeAddress),
	)

	query := eventsQuery(c.dataset(), c.network(), strings.Join(filters, ", "), q.Limit)
	return c.execute(ctx, query)
}

// TokenRegistrations fetches TokenRegistered events, optionally
// narrowed to one asset id, to resolve tokens back to conditions.
func (c *Client) TokenRegistrations(ctx context.Context, assetID string, limit int) ([]models.RawEvent, error) {
	if limit <= 0 {
		limit = 25
	}
	var filters []string
	if assetID != "" {
		filters = append(filters, fmt.Sprintf(
			`Arguments: {includes: {Name: {in: ["token0", "token1"]}, Value: {BigInteger: {eq: %q}}}}`, assetID))
	}
	filters = append(filters,
		`Log: {Signature: {Name: {is: "TokenRegistered"}}}`,
		fmt.Sprintf(`LogHeader: {Address: {in: [%q, %q]}}`, CTFExchangeAddress, LegacyExchangeAddress),
	)

	// Registrations are sparse, so search the combined dataset.
	query := eventsQuery("combined", c.network(), strings.Join(filters, ", "), limit)
	return c.execute(ctx, query)
}

// QuestionByCondition fetches the question initialization event for a
// condition id so its ancillary data can be decoded.
func (c *Client) QuestionByCondition(ctx context.Context, conditionID string, sinceDays int) ([]models.RawEvent, error) {
	if sinceDays <= 0 {
		sinceDays = 10
	}
	filters := []string{
		fmt.Sprintf("Block: {Time: {since_relative: {days_ago: %d}}}", sinceDays),
		fmt.Sprintf(`Arguments: {includes: {Name: {in: ["questionID", "conditionId"]}, Value: {Bytes: {is: %q}}}}`, conditionID),
		`Log: {Signature: {Name: {in: ["QuestionInitialized", "ConditionPreparation"]}}}`,
		fmt.Sprintf(`LogHeader: {Address: {in: [%q, %q]}}`, questionOracles[0], questionOracles[1]),
	}

	query := eventsQuery("archive", c.network(), strings.Join(filters, ", "), 1)
	return c.execute(ctx, query)
}

func (c *Client) dataset() string {
	if c.config.Dataset != "" {
		return c.config.Dataset
	}
	return "realtime"
}

func (c *Client) network() string {
	if c.config.Network != "" {
		return c.config.Network
	}
	return "matic"
}

func (c *Client) execute(ctx context.Context, query string) ([]models.RawEvent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(graphQLRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bitquery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bitquery returned status %d: %s", resp.StatusCode, payload)
	}

	var parsed graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		msgs := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
	}

	c.logger.Debug("Fetched events from bitquery", "count", len(parsed.Data.EVM.Events))
	return parsed.Data.EVM.Events, nil
}

// eventsQuery renders the shared Events query. Every argument value
// type the ABI can produce is selected so the normalizer can peel
// whichever one is present.
func eventsQuery(dataset, network, where string, limit int) string {
	return fmt.Sprintf(`{
  EVM(dataset: %s, network: %s) {
    Events(
      orderBy: {descending: Block_Time}
      where: {%s}
      limit: {count: %d}
    ) {
      Block { Time Number Hash }
      Transaction { Hash From To }
      Log { Index }
      Arguments {
        Name
        Value {
          ... on EVM_ABI_Integer_Value_Arg { integer }
          ... on EVM_ABI_Address_Value_Arg { address }
          ... on EVM_ABI_String_Value_Arg { string }
          ... on EVM_ABI_BigInt_Value_Arg { bigInteger }
          ... on EVM_ABI_Bytes_Value_Arg { hex }
          ... on EVM_ABI_Boolean_Value_Arg { bool }
        }
      }
    }
  }
}`, dataset, network, where, limit)
}
