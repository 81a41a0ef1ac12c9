package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ctfradar/radar/internal/models"
)

const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
	maxConsecutiveErrors  = 5

	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 30 * time.Second
)

// StreamConfig configures the websocket fill subscription.
type StreamConfig struct {
	URL              string
	Token            string
	Network          string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
}

func DefaultStreamConfig(token string) *StreamConfig {
	return &StreamConfig{
		URL:              "wss://streaming.bitquery.io/graphql",
		Token:            token,
		Network:          "matic",
		HandshakeTimeout: handshakeTimeout,
		ReadTimeout:      readTimeout,
		WriteTimeout:     writeTimeout,
		PingInterval:     pingInterval,
	}
}

// StreamWorker holds a graphql-ws subscription to OrderFilled events
// open, reconnecting with backoff when the connection drops. Each
// batch of raw events is handed to OnEvents.
type StreamWorker struct {
	Config   *StreamConfig
	Logger   *logrus.Logger
	OnEvents func([]models.RawEvent) error
}

func NewStreamWorker(config *StreamConfig, logger *logrus.Logger, onEvents func([]models.RawEvent) error) *StreamWorker {
	return &StreamWorker{
		Config:   config,
		Logger:   logger,
		OnEvents: onEvents,
	}
}

// Run blocks until ctx is cancelled, keeping the subscription alive.
func (w *StreamWorker) Run(ctx context.Context) {
	reconnectDelay := initialReconnectDelay
	consecutiveErrors := 0

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("Fill stream shutting down")
			return
		default:
			if err := w.handleConnection(ctx); err != nil {
				consecutiveErrors++
				w.Logger.Errorf("Fill stream error (%d/%d): %v. Reconnecting in %v...",
					consecutiveErrors, maxConsecutiveErrors, err, reconnectDelay)

				if reconnectDelay < maxReconnectDelay {
					reconnectDelay *= 2
					if reconnectDelay > maxReconnectDelay {
						reconnectDelay = maxReconnectDelay
					}
				}
				if consecutiveErrors >= maxConsecutiveErrors {
					w.Logger.Warn("Too many consecutive stream errors, extending delay")
					reconnectDelay = maxReconnectDelay
				}

				select {
				case <-ctx.Done():
					return
				case <-time.After(reconnectDelay):
					continue
				}
			} else {
				consecutiveErrors = 0
				reconnectDelay = initialReconnectDelay
			}
		}
	}
}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (w *StreamWorker) handleConnection(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: w.Config.HandshakeTimeout,
		Subprotocols:     []string{"graphql-transport-ws"},
	}
	header := http.Header{}

	url := w.Config.URL
	if w.Config.Token != "" {
		url = fmt.Sprintf("%s?token=%s", url, w.Config.Token)
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer conn.Close()

	w.Logger.Info("Connected to fill stream")

	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()

	if err := w.initProtocol(conn); err != nil {
		return err
	}

	pingTicker := time.NewTicker(w.Config.PingInterval)
	defer pingTicker.Stop()

	readErrors := make(chan error, 1)
	messages := make(chan wsMessage, 100)

	go func() {
		defer close(messages)
		for {
			select {
			case <-connCtx.Done():
				return
			default:
				conn.SetReadDeadline(time.Now().Add(w.Config.ReadTimeout))
				var msg wsMessage
				if err := conn.ReadJSON(&msg); err != nil {
					select {
					case readErrors <- err:
					case <-connCtx.Done():
					}
					return
				}
				select {
				case messages <- msg:
				case <-connCtx.Done():
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("Context cancelled, closing fill stream")
			return nil

		case err := <-readErrors:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				return fmt.Errorf("stream read error: %w", err)
			}
			return fmt.Errorf("stream connection error: %w", err)

		case msg := <-messages:
			switch msg.Type {
			case "next", "data":
				events, err := decodeStreamPayload(msg.Payload)
				if err != nil {
					w.Logger.Errorf("Failed to decode stream payload: %v", err)
					continue
				}
				if len(events) == 0 {
					continue
				}
				if err := w.OnEvents(events); err != nil {
					w.Logger.Errorf("Failed to handle stream events: %v", err)
				}
			case "error":
				return fmt.Errorf("stream subscription error: %s", msg.Payload)
			case "complete":
				return fmt.Errorf("stream subscription completed by server")
			case "ka", "pong", "connection_ack":
				// keepalive traffic
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(w.Config.WriteTimeout))
			if err := conn.WriteJSON(wsMessage{Type: "ping"}); err != nil {
				return fmt.Errorf("failed to send ping: %w", err)
			}
		}
	}
}

// initProtocol runs the graphql-transport-ws handshake and starts the
// fill subscription.
func (w *StreamWorker) initProtocol(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(w.Config.WriteTimeout))
	if err := conn.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		return fmt.Errorf("failed to init stream protocol: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(w.Config.HandshakeTimeout))
	var ack wsMessage
	if err := conn.ReadJSON(&ack); err != nil {
		return fmt.Errorf("failed to read connection ack: %w", err)
	}
	if ack.Type != "connection_ack" {
		return fmt.Errorf("unexpected handshake response %q", ack.Type)
	}

	network := w.Config.Network
	if network == "" {
		network = "matic"
	}
	subscription := fmt.Sprintf(`subscription {
  EVM(network: %s) {
    Events(
      where: {
        Log: {Signature: {Name: {in: ["OrderFilled"]}}},
        LogHeader: {Address: {in: [%q, %q]}}
      }
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
}`, network, CTFExchangeAddress, LegacyExchangeAddress)

	payload, err := json.Marshal(graphQLRequest{Query: subscription})
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(w.Config.WriteTimeout))
	if err := conn.WriteJSON(wsMessage{Type: "subscribe", ID: "fills", Payload: payload}); err != nil {
		return fmt.Errorf("failed to start subscription: %w", err)
	}
	return nil
}

func decodeStreamPayload(payload json.RawMessage) ([]models.RawEvent, error) {
	var parsed struct {
		Data struct {
			EVM struct {
				Events []models.RawEvent `json:"Events"`
			} `json:"EVM"`
		} `json:"data"`
		Errors []graphQLError `json:"errors"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Errors) > 0 {
		msgs := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("subscription errors: %s", strings.Join(msgs, "; "))
	}
	return parsed.Data.EVM.Events, nil
}
