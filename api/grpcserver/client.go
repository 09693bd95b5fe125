package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls a remote quoter.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(Codec{}.Name()))
}

func (c *Client) Quote(ctx context.Context, in *QuoteRequest) (*QuoteReply, error) {
	out := new(QuoteReply)
	if err := c.call(ctx, "Quote", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TopOfBook(ctx context.Context) (*TopOfBookReply, error) {
	out := new(TopOfBookReply)
	if err := c.call(ctx, "TopOfBook", &TopOfBookRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Market(ctx context.Context) (*MarketReply, error) {
	out := new(MarketReply)
	if err := c.call(ctx, "Market", &MarketRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}
