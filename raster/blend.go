package raster

import "image/color"

// BlendNRGBA performs "src over dst" compositing in non-premultiplied RGBA:
//
//	out_a = src_a + dst_a * (255 - src_a) / 255
//	out_c = (src_c * src_a + dst_c * dst_a * (255 - src_a) / 255) / out_a
func BlendNRGBA(src, dst color.NRGBA) color.NRGBA {
	if src.A == 0 {
		return dst
	}
	if src.A == 255 || dst.A == 0 {
		return src
	}

	srcA := uint32(src.A)
	dstFactorA := (uint32(dst.A)*(255-srcA) + 127) / 255
	outA := srcA + dstFactorA

	blend := func(sc, dc uint8) uint8 {
		v := (uint32(sc)*srcA + uint32(dc)*dstFactorA + outA/2) / outA
		if v > 255 {
			v = 255
		}
		return uint8(v)
	}

	return color.NRGBA{
		R: blend(src.R, dst.R),
		G: blend(src.G, dst.G),
		B: blend(src.B, dst.B),
		A: uint8(outA),
	}
}

// blendOver composites one NRGBA pixel (4 bytes) from src onto dst in place.
func blendOver(dst, src []byte) {
	switch src[3] {
	case 0:
		return
	case 255:
		copy(dst, src)
		return
	}
	out := BlendNRGBA(
		color.NRGBA{R: src[0], G: src[1], B: src[2], A: src[3]},
		color.NRGBA{R: dst[0], G: dst[1], B: dst[2], A: dst[3]},
	)
	dst[0], dst[1], dst[2], dst[3] = out.R, out.G, out.B, out.A
}
