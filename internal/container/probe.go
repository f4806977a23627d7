package container

import (
	"fmt"
	"io"

	"github.com/deepteams/apng/animation"
)

// Info describes a stream from the chunks that precede its image data.
type Info struct {
	Header   animation.Header
	Animated bool
	Control  animation.AnimationControl
	Paletted bool
}

// Probe reads chunks up to the first IDAT and reports what they declare.
// No image data is decoded.
func Probe(r io.Reader) (Info, error) {
	cr, err := NewChunkReader(r)
	if err != nil {
		return Info{}, err
	}
	var info Info
	for i := 0; ; i++ {
		c, err := cr.Next()
		if err != nil {
			return Info{}, err
		}
		if i == 0 && c.Type != TypeIHDR {
			return Info{}, fmt.Errorf("%w: %s before IHDR", ErrChunkOrder, c.Type)
		}
		switch c.Type {
		case TypeIHDR:
			if i != 0 {
				return Info{}, fmt.Errorf("%w: duplicate IHDR", ErrChunkOrder)
			}
			if info.Header, err = parseIHDR(c.Data); err != nil {
				return Info{}, err
			}
			info.Paletted = c.Data[9] == colorTypePaletted
		case TypeACTL:
			if info.Control, err = parseACTL(c.Data); err != nil {
				return Info{}, err
			}
			info.Animated = true
		case TypeIDAT, TypeIEND:
			return info, nil
		}
	}
}
