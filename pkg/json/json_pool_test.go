package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPosition struct {
	File string `json:"file"`
	Pos  int64  `json:"pos"`
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Marshal(testPosition{File: "bin.000003", Pos: 154})
	require.NoError(t, err)
	assert.JSONEq(t, `{"file":"bin.000003","pos":154}`, string(data))

	var out testPosition
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, testPosition{File: "bin.000003", Pos: 154}, out)
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLine(&buf, map[string]string{"query": "a<b"}))
	require.NoError(t, WriteLine(&buf, testPosition{File: "f", Pos: 1}))

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Equal(t, `{"query":"a<b"}`, string(lines[0]))
	assert.Equal(t, `{"file":"f","pos":1}`, string(lines[1]))
}

func TestPutBuffer_DropsLargeBuffers(t *testing.T) {
	buf := bytes.NewBuffer(make([]byte, 0, 2*1024*1024))
	PutBuffer(buf)

	got := GetBuffer()
	assert.Equal(t, 0, got.Len())
}
