package record

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Codec turns payloads into the bytes stored in the extra table. With
// compression enabled payloads are zstd frames; Decode accepts both forms so a
// store can switch the setting without rewriting old rows.
//
// A Codec is safe for concurrent use.
type Codec struct {
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	closed   sync.Once
}

// NewCodec creates a codec. compress selects zstd framing for Encode.
func NewCodec(compress bool) (*Codec, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	c := &Codec{compress: compress, dec: dec}
	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			dec.Close()
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		c.enc = enc
	}
	return c, nil
}

// Encode returns the stored form of p, or nil for an empty payload.
func (c *Codec) Encode(p Payload) ([]byte, error) {
	if len(p) == 0 {
		return nil, nil
	}
	raw, err := MarshalPayload(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if !c.compress {
		return raw, nil
	}
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw))), nil
}

// Decode reverses Encode.
func (c *Codec) Decode(data []byte) (Payload, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if bytes.HasPrefix(data, zstdMagic) {
		raw, err := c.dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress payload: %w", err)
		}
		data = raw
	}
	return UnmarshalPayload(data)
}

// Close releases the zstd state. Further calls are no-ops.
func (c *Codec) Close() {
	c.closed.Do(func() {
		c.dec.Close()
		if c.enc != nil {
			c.enc.Close()
		}
	})
}
