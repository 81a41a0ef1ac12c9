package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	config := DefaultClientConfig("test-token")
	config.URL = srv.URL
	config.RequestsPerSecond = 1000
	return srv, NewClient(config, nil)
}

func TestClientRecentFills(t *testing.T) {
	var gotQuery string
	var gotAuth string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotQuery = req.Query

		fmt.Fprint(w, `{"data":{"EVM":{"Events":[
			{"Block":{"Time":"2024-05-01T12:00:00Z","Number":55123001},
			 "Transaction":{"Hash":"0xdeadbeef"},
			 "Log":{"Index":3},
			 "Arguments":[{"Name":"maker","Value":{"address":"0xaaa"}}]}
		]}}}`)
	})

	events, err := client.RecentFills(context.Background(), FillQuery{Limit: 5})
	if err != nil {
		t.Fatalf("RecentFills: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Block.Number != 55123001 {
		t.Errorf("block number = %d", events[0].Block.Number)
	}
	if events[0].Log.Index != 3 {
		t.Errorf("log index = %d", events[0].Log.Index)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if !strings.Contains(gotQuery, "OrderFilled") {
		t.Error("query must filter on OrderFilled")
	}
	if !strings.Contains(gotQuery, CTFExchangeAddress) || !strings.Contains(gotQuery, LegacyExchangeAddress) {
		t.Error("query must target both exchange contracts")
	}
}

func TestClientFillsByTrader(t *testing.T) {
	var gotQuery string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotQuery = req.Query
		fmt.Fprint(w, `{"data":{"EVM":{"Events":[]}}}`)
	})

	_, err := client.RecentFills(context.Background(), FillQuery{
		Trader: "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	})
	if err != nil {
		t.Fatalf("RecentFills: %v", err)
	}
	if !strings.Contains(gotQuery, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa") {
		t.Error("trader filter must be lowercased into the query")
	}
	if !strings.Contains(gotQuery, `"maker", "taker"`) {
		t.Error("trader filter must match either leg")
	}
}

func TestClientGraphQLErrors(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"rate limit exceeded"}]}`)
	})

	_, err := client.RecentFills(context.Background(), FillQuery{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("error = %v", err)
	}
}

func TestClientHTTPError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	_, err := client.RecentFills(context.Background(), FillQuery{})
	if err == nil {
		t.Fatal("expected an error for non-200 status")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error = %v", err)
	}
}

func TestClientQuestionByCondition(t *testing.T) {
	var gotQuery string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotQuery = req.Query
		fmt.Fprint(w, `{"data":{"EVM":{"Events":[]}}}`)
	})

	_, err := client.QuestionByCondition(context.Background(), "0xc0ffee", 0)
	if err != nil {
		t.Fatalf("QuestionByCondition: %v", err)
	}
	if !strings.Contains(gotQuery, "QuestionInitialized") {
		t.Error("query must match question initialization events")
	}
	if !strings.Contains(gotQuery, "dataset: archive") {
		t.Error("question lookups must use the archive dataset")
	}
}

func TestDecodeStreamPayload(t *testing.T) {
	payload := []byte(`{"data":{"EVM":{"Events":[{"Block":{"Number":5}}]}}}`)
	events, err := decodeStreamPayload(payload)
	if err != nil {
		t.Fatalf("decodeStreamPayload: %v", err)
	}
	if len(events) != 1 || events[0].Block.Number != 5 {
		t.Errorf("events = %+v", events)
	}

	if _, err := decodeStreamPayload([]byte(`{"errors":[{"message":"boom"}]}`)); err == nil {
		t.Error("expected an error for payload errors")
	}
}
