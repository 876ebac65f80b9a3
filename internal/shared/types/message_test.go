package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want MessageType
	}{
		{
			name: "create with options",
			raw:  `{"type":"create","data":{"shell":"/bin/zsh","cols":120,"rows":40},"timestamp":1712345678901}`,
			want: TypeCreate,
		},
		{
			name: "write with bare string payload",
			raw:  `{"type":"write","terminalId":"term_01ABC","data":"\r","timestamp":1712345678902}`,
			want: TypeWrite,
		},
		{
			name: "kill without payload",
			raw:  `{"type":"kill","terminalId":"term_01ABC","timestamp":1712345678903}`,
			want: TypeKill,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Type)
		})
	}
}

func TestDecodeDataShapes(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"create","data":{"shell":"/bin/zsh","env":{"A":"1"},"cols":120,"rows":40},"timestamp":1}`))
	require.NoError(t, err)

	var req CreateRequest
	require.NoError(t, msg.DecodeData(&req))
	assert.Equal(t, "/bin/zsh", req.Shell)
	assert.Equal(t, 120, req.Cols)
	assert.Equal(t, 40, req.Rows)
	assert.Equal(t, map[string]string{"A": "1"}, req.Env)

	// write payload is a bare JSON string
	msg, err = Decode([]byte(`{"type":"write","terminalId":"t","data":"\r","timestamp":1}`))
	require.NoError(t, err)

	var input string
	require.NoError(t, msg.DecodeData(&input))
	assert.Equal(t, "\r", input)
}

func TestConstructorsStampTimestamps(t *testing.T) {
	before := Now()
	msg := DataMessage("term_x", []byte("hello"))
	after := Now()

	assert.Equal(t, TypeData, msg.Type)
	assert.Equal(t, "term_x", msg.TerminalID)
	assert.GreaterOrEqual(t, msg.Timestamp, before)
	assert.LessOrEqual(t, msg.Timestamp, after)

	var text string
	require.NoError(t, msg.DecodeData(&text))
	assert.Equal(t, "hello", text)
}

func TestListMessageNeverEncodesNullSessions(t *testing.T) {
	raw, err := Encode(ListMessage(nil))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sessions":[]`)
}

func TestErrorMessageCarriesText(t *testing.T) {
	msg := ErrorMessage("term_x", "spawn failed: no such shell")

	var p ErrorPayload
	require.NoError(t, msg.DecodeData(&p))
	assert.Equal(t, "spawn failed: no such shell", p.Message)
}
