package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebonn/mumlink/internal/wire"
)

type pipeRWC struct {
	r *bytes.Buffer
	w *bytes.Buffer
}

func (p *pipeRWC) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeRWC) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeRWC) Close() error                { return nil }

func TestConnRoundTrip(t *testing.T) {
	codec := wire.NewBinaryCodec()
	frame, err := codec.Encode(&wire.Ping{Timestamp: 42})
	require.NoError(t, err)

	var buf bytes.Buffer
	out := New(&pipeRWC{r: &bytes.Buffer{}, w: &buf})
	require.NoError(t, out.WritePacket(frame))

	// Wire prefix is a full header; the kind repeats the frame's own.
	var h wire.FrameHeader
	require.NoError(t, h.Decode(buf.Bytes()))
	assert.Equal(t, uint16(wire.KindPing), h.Kind)
	assert.Equal(t, uint32(len(frame)-2), h.Length)

	in := New(&pipeRWC{r: &buf, w: &bytes.Buffer{}})
	got, err := in.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, frame, []byte(got))

	msg, err := codec.Decode(got)
	require.NoError(t, err)
	assert.Equal(t, int64(42), msg.(*wire.Ping).Timestamp)
}

func TestConnShortFrameRejected(t *testing.T) {
	c := New(&pipeRWC{r: &bytes.Buffer{}, w: &bytes.Buffer{}})
	err := c.WritePacket([]byte{0x01})
	assert.ErrorIs(t, err, wire.ErrFrameShort)
}

func TestConnTruncatedRead(t *testing.T) {
	var buf bytes.Buffer
	h := wire.FrameHeader{Kind: wire.KindPing, Length: 100}
	buf.Write(h.Encode())
	buf.Write([]byte{1, 2, 3})

	c := New(&pipeRWC{r: &buf, w: &bytes.Buffer{}})
	_, err := c.ReadPacket()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestConnOversizeHeaderRejected(t *testing.T) {
	var buf bytes.Buffer
	h := wire.FrameHeader{Kind: wire.KindPing, Length: wire.MaxFrameLen + 1}
	buf.Write(h.Encode())

	c := New(&pipeRWC{r: &buf, w: &bytes.Buffer{}})
	_, err := c.ReadPacket()
	assert.ErrorIs(t, err, wire.ErrFrameOversize)
}
