package natsx

import (
	"context"
	"fmt"
)

// NatsxProducer publishes by registered biz route.
type NatsxProducer struct{ c *NatsxClient }

func NewNatsxProducer(c *NatsxClient) *NatsxProducer { return &NatsxProducer{c: c} }

func (p *NatsxProducer) Publish(_ context.Context, biz string, data []byte, hdr map[string]string) error {
	r, ok := p.c.route(biz)
	if !ok {
		return fmt.Errorf("route not found: %s", biz)
	}
	return p.c.sendCore(r.Subject, data, hdr)
}
