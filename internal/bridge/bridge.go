// Package bridge offers a blocking load call on top of the pipeline.
//
// A Bridge owns one worker goroutine, started on first use. Each call is a
// single request/response exchange with that worker: the worker runs the
// pipeline and answers with a JSON message
//
//	{"ok":true,"module":<value>,"dependencies":[...]}
//	{"ok":false,"error":"<message>"}
//
// which the caller decodes again. Only data survives the exchange: module
// namespaces arrive as plain objects and function values are rejected.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shinji-kodama/unrun/internal/config"
	"github.com/shinji-kodama/unrun/internal/jsvalue"
	"github.com/shinji-kodama/unrun/internal/model"
)

// ErrFunctionResult is the failure reported when the loaded value holds a
// function.
var ErrFunctionResult = errors.New(model.ErrorPrefix + " LoadSync cannot return functions")

// ErrClosed is returned by LoadSync after Close.
var ErrClosed = errors.New(model.ErrorPrefix + " bridge is closed")

// LoadFunc runs the evaluate-and-return pipeline.
type LoadFunc func(ctx context.Context, opts config.Options) (*model.Result, error)

// message is the worker's reply.
type message struct {
	OK           bool            `json:"ok"`
	Module       json.RawMessage `json:"module,omitempty"`
	Dependencies []string        `json:"dependencies,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type request struct {
	opts  config.Options
	reply chan []byte
}

// Bridge serializes blocking load calls onto one worker goroutine.
type Bridge struct {
	load LoadFunc

	// mu keeps one call in flight and guards closed.
	mu       sync.Mutex
	closed   bool
	start    sync.Once
	requests chan request
	quit     chan struct{}
}

// New returns a Bridge that runs load on its worker.
func New(load LoadFunc) *Bridge {
	return &Bridge{
		load:     load,
		requests: make(chan request),
		quit:     make(chan struct{}),
	}
}

// LoadSync runs the pipeline for opts and blocks until it finished. There
// is no cancellation and no timeout. Concurrent calls wait for each other.
func (b *Bridge) LoadSync(opts config.Options) (*model.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.start.Do(func() { go b.serve() })

	reply := make(chan []byte, 1)
	b.requests <- request{opts: opts, reply: reply}
	return decodeMessage(<-reply)
}

// Close stops the worker. Further LoadSync calls fail with ErrClosed.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.quit)
}

func (b *Bridge) serve() {
	for {
		select {
		case req := <-b.requests:
			req.reply <- b.handle(req.opts)
		case <-b.quit:
			return
		}
	}
}

// handle runs one request and encodes the reply.
func (b *Bridge) handle(opts config.Options) []byte {
	msg := message{}
	res, err := b.load(context.Background(), opts)
	if err == nil {
		msg, err = encodeResult(res)
	}
	if err != nil {
		msg = message{Error: err.Error()}
	}
	// message holds only JSON-encodable fields.
	raw, _ := json.Marshal(msg)
	return raw
}

func encodeResult(res *model.Result) (message, error) {
	plain, err := jsvalue.ToPlain(res.Module)
	if errors.Is(err, jsvalue.ErrFunction) {
		return message{}, ErrFunctionResult
	}
	if err != nil {
		return message{}, err
	}
	module, err := json.Marshal(plain)
	if err != nil {
		return message{}, fmt.Errorf("%s failed to encode module: %w", model.ErrorPrefix, err)
	}
	return message{OK: true, Module: module, Dependencies: res.Dependencies}, nil
}

func decodeMessage(raw []byte) (*model.Result, error) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%s malformed bridge reply: %w", model.ErrorPrefix, err)
	}
	if !msg.OK {
		return nil, errors.New(msg.Error)
	}
	module, err := jsvalue.DecodeJSON(msg.Module)
	if err != nil {
		return nil, fmt.Errorf("%s malformed bridge reply: %w", model.ErrorPrefix, err)
	}
	deps := msg.Dependencies
	if deps == nil {
		deps = []string{}
	}
	return &model.Result{Module: module, Dependencies: deps}, nil
}
