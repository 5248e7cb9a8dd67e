package frontend

import (
	"context"
	"errors"
	"time"

	"github.com/mcrelay/mcrelay/meta"
	"github.com/mcrelay/mcrelay/obslog"
	"github.com/mcrelay/mcrelay/proxyreq"
	"github.com/mcrelay/mcrelay/routing"
	"github.com/mcrelay/mcrelay/stats"
)

// Destination is what a Pipeline routes a parsed request through. It's
// satisfied by *backend.AccessPointPool; kept as an interface here so
// Pipeline doesn't have to import backend, and so tests can supply a fake.
type Destination interface {
	routing.AccessPoint
	Execute(ctx context.Context, req *meta.Request) (*meta.Response, error)
}

// Pipeline is the reference wiring between AsciiBridge's parsed requests
// and the request-context surface: for every request it builds a
// proxyreq.ContextTyped, executes it against a single Destination, logs
// the reply, records request latency, and hands the response back to
// whoever is waiting for it.
//
// It routes every request to the same Destination rather than through a
// route tree: real route-tree traversal and fan-out are the external
// collaborator behind routing.ProxyRoute (see routing.Config.Route), not
// something this package implements. Pipeline exists to exercise the
// context lifecycle and its logging/stats hooks end to end, not to
// replace the router.
type Pipeline struct {
	proxy  routing.Proxy
	config *routing.Config
	pool   string
	dest   Destination

	logger    *obslog.Logger
	collector *stats.RequestCollector
}

// NewPipeline builds a Pipeline that logs through logger and records
// reply latency into collector. Either may be nil to skip that side
// effect.
func NewPipeline(proxy routing.Proxy, config *routing.Config, pool string, dest Destination, logger *obslog.Logger, collector *stats.RequestCollector) *Pipeline {
	return &Pipeline{
		proxy:     proxy,
		config:    config,
		pool:      pool,
		dest:      dest,
		logger:    logger,
		collector: collector,
	}
}

// Bind returns an AsciiBridge handle function that routes every request
// parsed off one connection through this pipeline, delivering each reply
// to sendReply. Typical wiring:
//
//	bridge := frontend.NewAsciiBridge(buf, pipeline.Bind(ctx, sendReply), onFatal)
//	cb := frontend.NewCallbacks(bridge, onFatal)
//	dispatcher := wire.NewDispatcher(buf, cb)
func (p *Pipeline) Bind(ctx context.Context, sendReply func(*meta.Response)) func(*meta.Request) {
	return func(req *meta.Request) {
		p.HandleRequest(ctx, req, sendReply)
	}
}

// HandleRequest is the callback shape AsciiBridge expects: parse a
// request, hand it here, and the pipeline takes it the rest of the way to
// a reply. sendReply is called exactly once, synchronously, either with
// the destination's response or with a synthesized error if the request
// context never reaches SendReply on its own (see
// proxyreq.PendingContextTyped.Process's newErrorReply).
func (p *Pipeline) HandleRequest(ctx context.Context, req *meta.Request, sendReply func(*meta.Response)) {
	pending := proxyreq.NewTyped[meta.Request, *meta.Response](p.proxy, req, routing.PriorityCritical)
	if p.logger != nil {
		pending.SetLoggers(p.logger, nil)
	}

	rctx := pending.Process(p.config, sendReply, func(message string) *meta.Response {
		return &meta.Response{Error: &meta.ServerError{Message: message}}
	})
	defer rctx.Release()

	rctx.StartProcessing(func(rctx *proxyreq.ContextTyped[meta.Request, *meta.Response]) {
		p.execute(ctx, rctx)
	})
}

func (p *Pipeline) execute(ctx context.Context, rctx *proxyreq.ContextTyped[meta.Request, *meta.Response]) {
	req := rctx.Request()
	start := time.Now()
	resp, err := p.dest.Execute(ctx, req)
	end := time.Now()

	isError := err != nil || (resp != nil && resp.HasError())
	isTimeout := errors.Is(err, context.DeadlineExceeded)
	if err != nil {
		resp = &meta.Response{Error: &meta.ServerError{Message: err.Error()}}
	}

	rctx.OnReplyReceived(p.pool, p.dest, "", summarizeRequest(req), summarizeResponse(resp), start.UnixMicro(), end.UnixMicro())
	if p.collector != nil {
		p.collector.RecordReply(end.Sub(start), isError, isTimeout)
	}

	rctx.SendReply(resp)
}

func summarizeRequest(req *meta.Request) string {
	return string(req.Command) + " " + req.Key
}

func summarizeResponse(resp *meta.Response) string {
	if resp.HasError() {
		return resp.Error.Error()
	}
	return string(resp.Status)
}
