package protocol

import "testing"

func TestSerializeBatch_PreservesOrder(t *testing.T) {
	t.Parallel()
	responses := []Response{
		{Kind: RespPong},
		{Kind: RespOK},
		{Kind: RespOK},
		{Kind: RespValue, Value: []byte("1")},
		{Kind: RespValue, Value: []byte("2")},
	}
	got := string(SerializeBatch(responses))
	want := "PONG\nOK\nOK\n1\n2\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestResponse_EncodeLiterals(t *testing.T) {
	t.Parallel()
	cases := []struct {
		r    Response
		want string
	}{
		{Response{Kind: RespPong}, "PONG"},
		{Response{Kind: RespOK}, "OK"},
		{Response{Kind: RespNull}, "NULL"},
		{Response{Kind: RespValue, Value: []byte("hi")}, "hi"},
		{Response{Kind: RespError, Err: "invalid command"}, "ERROR: invalid command"},
		{Response{Kind: RespStats, Stats: []byte(`{"hits":1}`)}, `STATS: {"hits":1}`},
	}
	for _, c := range cases {
		if got := string(c.r.Encode()); got != c.want {
			t.Fatalf("got %q want %q", got, c.want)
		}
	}
}
