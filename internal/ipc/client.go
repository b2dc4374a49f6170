package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the node daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the node status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Safespace.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Safespace.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Trigger raises a manual accident report for a lane.
func (c *Client) Trigger(lane string) (*TriggerResponse, error) {
	var resp TriggerResponse
	if err := c.client.Call("Safespace.Trigger", TriggerRequest{Lane: lane}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Detect runs every loaded model against the current frame.
func (c *Client) Detect() (*DetectResponse, error) {
	var resp DetectResponse
	if err := c.client.Call("Safespace.Detect", DetectRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Failures retrieves recent failure records.
func (c *Client) Failures(limit int) (*FailuresResponse, error) {
	var resp FailuresResponse
	if err := c.client.Call("Safespace.Failures", FailuresRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reports retrieves recent journaled reports.
func (c *Client) Reports(limit int) (*ReportsResponse, error) {
	var resp ReportsResponse
	if err := c.client.Call("Safespace.Reports", ReportsRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Instructions retrieves recent journaled instructions.
func (c *Client) Instructions(limit int) (*InstructionsResponse, error) {
	var resp InstructionsResponse
	if err := c.client.Call("Safespace.Instructions", InstructionsRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Safespace.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
