package protocol

import (
	"bytes"
	"testing"
)

func TestParseBatch_BasicCommands(t *testing.T) {
	t.Parallel()
	buf := []byte("PING\nPUT a 1\nPUT b 2 30\nGET a\nDEL b\nEXPIRE a 5\nSTATS\n")
	cmds, consumed := ParseBatch(buf, 0)
	if consumed != len(buf) {
		t.Fatalf("expected full buffer consumed, got %d/%d", consumed, len(buf))
	}
	wantKinds := []Kind{CmdPing, CmdPut, CmdPut, CmdGet, CmdDel, CmdExpire, CmdStats}
	if len(cmds) != len(wantKinds) {
		t.Fatalf("expected %d commands, got %d", len(wantKinds), len(cmds))
	}
	for i, k := range wantKinds {
		if cmds[i].Kind != k {
			t.Fatalf("command %d: expected kind %d got %d", i, k, cmds[i].Kind)
		}
	}
	if cmds[2].TTLSeconds != 30 {
		t.Fatalf("expected TTL 30 on second PUT, got %d", cmds[2].TTLSeconds)
	}
}

func TestParseBatch_RetainsIncompleteTrailingLine(t *testing.T) {
	t.Parallel()
	buf := []byte("PING\nGET partial-key-no-newline")
	cmds, consumed := ParseBatch(buf, 0)
	if len(cmds) != 1 || cmds[0].Kind != CmdPing {
		t.Fatalf("expected exactly one PING parsed, got %+v", cmds)
	}
	if consumed != len("PING\n") {
		t.Fatalf("expected consumed to stop before the partial line, got %d", consumed)
	}
}

func TestParseBatch_RespectsMaxBatch(t *testing.T) {
	t.Parallel()
	buf := []byte("PING\nPING\nPING\nPING\n")
	cmds, consumed := ParseBatch(buf, 2)
	if len(cmds) != 2 {
		t.Fatalf("expected batch capped at 2, got %d", len(cmds))
	}
	if consumed != len("PING\nPING\n") {
		t.Fatalf("expected consumed to cover exactly the parsed lines, got %d", consumed)
	}
}

func TestParseBatch_UnknownCommandIsInvalid(t *testing.T) {
	t.Parallel()
	cmds, _ := ParseBatch([]byte("FROB x y\n"), 0)
	if len(cmds) != 1 || cmds[0].Kind != CmdInvalid {
		t.Fatalf("expected CmdInvalid for unknown command, got %+v", cmds)
	}
}

func TestParseBatch_MalformedTokenCountIsInvalid(t *testing.T) {
	t.Parallel()
	cases := []string{"PUT onlykey\n", "GET\n", "GET a b\n", "EXPIRE a\n", "EXPIRE a notanumber\n", "PING extra\n"}
	for _, line := range cases {
		cmds, _ := ParseBatch([]byte(line), 0)
		if len(cmds) != 1 || cmds[0].Kind != CmdInvalid {
			t.Fatalf("line %q: expected CmdInvalid, got %+v", line, cmds)
		}
	}
}

func TestParseBatch_KeysSurviveBufferReuse(t *testing.T) {
	t.Parallel()
	buf := []byte("PUT a 1\n")
	cmds, _ := ParseBatch(buf, 0)
	key := cmds[0].Key
	for i := range buf {
		buf[i] = 'X'
	}
	if !bytes.Equal(key, []byte("a")) {
		t.Fatalf("expected parsed key to be independent of the source buffer, got %q", key)
	}
}
