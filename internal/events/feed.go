package events

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// Feed reads events from a daemon's status server
type Feed struct {
	conn *websocket.Conn
}

// Dial connects to the /events websocket at addr (host:port)
func Dial(ctx context.Context, addr string) (*Feed, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/events"}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w (HTTP %d)", u.String(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", u.String(), err)
	}
	return &Feed{conn: conn}, nil
}

// Next blocks until the next event arrives or the connection closes
func (f *Feed) Next() (Message, error) {
	var msg Message
	if err := f.conn.ReadJSON(&msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Close closes the connection
func (f *Feed) Close() error {
	_ = f.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return f.conn.Close()
}
