// Package server implements the TCP accept loop and per-connection pipeline
// described in spec §4.11-§4.12: one cooperative read-parse-execute-write
// loop per connection, batched up to max_batch_size, with an idle-connection
// deadline. Grounded on the pack's EchoVault server.go (StartTCP accept
// loop, one goroutine per connection, deadline-free read loop generalized
// here to a bounded deadline) and on the teacher's plain, allocation-aware
// style elsewhere in the repo.
package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RogerFelipeNsk/crabcache/protocol"
	"github.com/RogerFelipeNsk/crabcache/store"
)

// execute runs one command against mgr and produces its wire response. It
// never returns an error: every failure mode the wire protocol recognizes
// (not found, rejected, malformed) is represented as a Response value (spec
// §7 — ClientProtocolError/NotFound/Rejected are literal responses, not Go
// errors at this layer).
func execute(ctx context.Context, mgr *store.Manager, cmd protocol.Command) protocol.Response {
	switch cmd.Kind {
	case protocol.CmdPing:
		return protocol.Response{Kind: protocol.RespPong}

	case protocol.CmdPut:
		ttl := time.Duration(cmd.TTLSeconds) * time.Second
		outcome, err := mgr.Put(cmd.Key, cmd.Value, ttl)
		if err != nil || outcome == store.Rejected {
			return protocol.Response{Kind: protocol.RespNull}
		}
		return protocol.Response{Kind: protocol.RespOK}

	case protocol.CmdGet:
		v, ok := mgr.Get(cmd.Key)
		if !ok {
			return protocol.Response{Kind: protocol.RespNull}
		}
		return protocol.Response{Kind: protocol.RespValue, Value: v}

	case protocol.CmdDel:
		if !mgr.Delete(cmd.Key) {
			return protocol.Response{Kind: protocol.RespNull}
		}
		return protocol.Response{Kind: protocol.RespOK}

	case protocol.CmdExpire:
		ttl := time.Duration(cmd.TTLSeconds) * time.Second
		if !mgr.Expire(cmd.Key, ttl) {
			return protocol.Response{Kind: protocol.RespNull}
		}
		return protocol.Response{Kind: protocol.RespOK}

	case protocol.CmdStats:
		st, err := mgr.Stats(ctx)
		if err != nil {
			return protocol.Response{Kind: protocol.RespError, Err: "stats unavailable"}
		}
		blob, err := json.Marshal(st)
		if err != nil {
			return protocol.Response{Kind: protocol.RespError, Err: "stats unavailable"}
		}
		return protocol.Response{Kind: protocol.RespStats, Stats: blob}

	default:
		return protocol.Response{Kind: protocol.RespError, Err: "invalid command"}
	}
}

// executeBatch runs every command in order, preserving the i-th response
// for the i-th command (spec §8 property 6 "pipelining order preservation").
func executeBatch(ctx context.Context, mgr *store.Manager, cmds []protocol.Command) []protocol.Response {
	responses := make([]protocol.Response, len(cmds))
	for i, cmd := range cmds {
		responses[i] = execute(ctx, mgr, cmd)
	}
	return responses
}
