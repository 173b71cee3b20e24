package server

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/RogerFelipeNsk/crabcache/config"
	"github.com/RogerFelipeNsk/crabcache/protocol"
	"github.com/RogerFelipeNsk/crabcache/store"
)

// connLoop is the per-connection read-parse-execute-write cycle from
// spec §4.11: accumulate bytes until at least one full line is available,
// parse up to max_batch_size commands at once, execute them in order, and
// write all of their responses back in a single Write call. A
// max_batch_size of 1 falls out of this naturally (ParseBatch just returns
// one command per call) rather than needing a separate code path, matching
// spec §4.11's fallback note.
func connLoop(ctx context.Context, conn net.Conn, mgr *store.Manager, cfg config.Config) {
	defer conn.Close()

	timeout := time.Duration(cfg.ConnectionTimeoutSeconds) * time.Second
	read := make([]byte, cfg.BufferSize)
	var pending []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return
		}
		n, err := conn.Read(read)
		if n > 0 {
			pending = append(pending, read[:n]...)
		}

		for len(pending) > 0 {
			cmds, consumed := protocol.ParseBatch(pending, cfg.MaxBatchSize)
			if consumed == 0 {
				break
			}
			pending = pending[consumed:]

			if len(cmds) > 0 {
				responses := executeBatch(ctx, mgr, cmds)
				if _, werr := conn.Write(protocol.SerializeBatch(responses)); werr != nil {
					return
				}
			}
		}

		if err != nil {
			if err == io.EOF {
				return
			}
			// Timeout or reset: the connection is idle or gone either way.
			return
		}

		if len(pending) > 0 {
			compacted := make([]byte, len(pending))
			copy(compacted, pending)
			pending = compacted
		} else {
			pending = pending[:0]
		}
	}
}
