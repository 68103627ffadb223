package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/varkas/roomrelay/protocol"
)

var (
	// ErrUnreachable marks a relay that failed a probe or a room-creation
	// call. Recoverable: the caller skips the relay and continues.
	ErrUnreachable = errors.New("hub: relay unreachable")

	// ErrBadRelayResponse marks a relay that accepted a room-creation call
	// but returned a body that failed to parse.
	ErrBadRelayResponse = errors.New("hub: malformed relay response")
)

const requestTimeout = 5 * time.Second

// Client is the hub's outbound HTTP client for one relay. The underlying
// connection pool is created once at registration and reused for every
// probe and room-creation call.
type Client struct {
	addr string
	http *http.Client
}

// NewClient builds a client for the relay listening at addr (host:port).
func NewClient(addr string) *Client {
	return &Client{
		addr: addr,
		http: &http.Client{Timeout: requestTimeout},
	}
}

// Addr returns the relay address this client targets.
func (c *Client) Addr() string {
	return c.addr
}

// Healthcheck probes GET /healthcheck and reports ErrUnreachable unless the
// relay answers 200.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/healthcheck"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: healthcheck returned %d", ErrUnreachable, resp.StatusCode)
	}
	return nil
}

// CreateRoom asks the relay to create a room via POST /room/create and
// decodes its RoomInfo response. Transport failures and non-2xx statuses
// are ErrUnreachable; a 2xx with an undecodable body is ErrBadRelayResponse.
func (c *Client) CreateRoom(ctx context.Context) (protocol.RoomInfo, error) {
	var info protocol.RoomInfo

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/room/create"), nil)
	if err != nil {
		return info, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return info, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return info, fmt.Errorf("%w: room creation returned %d", ErrUnreachable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("%w: %v", ErrBadRelayResponse, err)
	}
	return info, nil
}

func (c *Client) url(path string) string {
	return "http://" + c.addr + path
}
