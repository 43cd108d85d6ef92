package icon

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// Monitor streams contract events over the node's block websocket. One
// connection per subscription: the filter request goes out once after
// connect, then every block with a matching eventlog arrives as a
// notification carrying the logs.
type Monitor struct {
	wsURL   string
	address string
}

func NewMonitor(wsURL, address string) *Monitor {
	return &Monitor{wsURL: wsURL, address: address}
}

// Subscribe opens the websocket, registers a filter for one event kind
// on the messaging contract and pushes decoded events onto sink until
// the returned cancel func is called or the connection drops.
func (m *Monitor) Subscribe(ctx context.Context, chain types.ChainID, kind types.EventKind, sink chan<- types.ChainEvent) (func(), error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect block monitor: %w", err)
	}
	request := MonitorRequest{
		Height:       "0x0",
		EventFilters: []EventFilter{{Event: string(kind), Addr: m.address}},
		Logs:         "0x1",
	}
	if err := conn.WriteJSON(request); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send monitor request: %w", err)
	}
	var response MonitorResponse
	if err := conn.ReadJSON(&response); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read monitor response: %w", err)
	}
	if response.Code != 0 {
		conn.Close()
		return nil, fmt.Errorf("monitor request rejected: code %d %s", response.Code, response.Message)
	}

	done := make(chan struct{})
	go m.readLoop(conn, chain, kind, sink, done)
	cancel := func() {
		close(done)
		conn.Close()
	}
	return cancel, nil
}

func (m *Monitor) readLoop(conn *websocket.Conn, chain types.ChainID, kind types.EventKind, sink chan<- types.ChainEvent, done <-chan struct{}) {
	for {
		var notification BlockNotification
		if err := conn.ReadJSON(&notification); err != nil {
			select {
			case <-done:
			default:
				log.Error().Err(err).Str("chainId", chain.String()).
					Str("event", string(kind)).
					Msg("[Monitor] [readLoop] connection lost")
			}
			return
		}
		for _, txLogs := range notification.Logs {
			for _, filterLogs := range txLogs {
				for i := range filterLogs {
					event, err := DecodeEventLog(chain, &filterLogs[i])
					if err != nil {
						log.Warn().Err(err).Msg("[Monitor] [readLoop] undecodable eventlog")
						continue
					}
					if event == nil || event.Kind != kind {
						continue
					}
					event.TxHash = notification.Hash
					select {
					case sink <- *event:
					case <-done:
						return
					}
				}
			}
		}
	}
}
