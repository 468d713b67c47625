package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientValid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ClientMessage
	}{
		{
			name: "create with geometry and name",
			raw:  `{"type":"create","id":"s1","cols":120,"rows":40,"name":"dev"}`,
			want: ClientMessage{Type: TypeCreate, ID: "s1", Cols: 120, Rows: 40, Name: "dev"},
		},
		{
			name: "create bare",
			raw:  `{"type":"create","id":"s2"}`,
			want: ClientMessage{Type: TypeCreate, ID: "s2"},
		},
		{
			name: "input",
			raw:  `{"type":"input","session_id":"s1","data":"echo HELLO\n"}`,
			want: ClientMessage{Type: TypeInput, SessionID: "s1", Data: "echo HELLO\n"},
		},
		{
			name: "resize",
			raw:  `{"type":"resize","session_id":"s1","cols":100,"rows":30}`,
			want: ClientMessage{Type: TypeResize, SessionID: "s1", Cols: 100, Rows: 30},
		},
		{
			name: "close",
			raw:  `{"type":"close","session_id":"s1"}`,
			want: ClientMessage{Type: TypeClose, SessionID: "s1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeClient([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg)
		})
	}
}

func TestDecodeClientMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unparseable", `{not json`},
		{"missing type", `{"id":"s1"}`},
		{"unknown type", `{"type":"reboot","session_id":"s1"}`},
		{"create without id", `{"type":"create"}`},
		{"input without session", `{"type":"input","data":"x"}`},
		{"resize without session", `{"type":"resize","cols":80,"rows":24}`},
		{"resize zero cols", `{"type":"resize","session_id":"s1","cols":0,"rows":24}`},
		{"resize negative rows", `{"type":"resize","session_id":"s1","cols":80,"rows":-1}`},
		{"close without session", `{"type":"close"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeClient([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestServerEventEncoding(t *testing.T) {
	ev := Output("s1", []byte("hi"))
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"output","session_id":"s1","data":"hi"}`, string(data))

	ev = Created("s1")
	data, err = json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"created","session_id":"s1"}`, string(data))

	ev = Errorf("unknown session: %s", "s9")
	data, err = json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"unknown session: s9"}`, string(data))
}
