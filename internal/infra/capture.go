package infra

import "fmt"

// Pixel helpers shared by the capture backends. Frames arrive in whatever
// packed format the device negotiated; everything downstream wants tight
// RGB24, row-major, no stride padding.

// yuyvToRGB converts a packed YUYV 4:2:2 frame to RGB24 using the BT.601
// limited-range coefficients in integer form. Horizontal pixel pairs share
// one chroma sample. A stride of 0 means the rows are tightly packed.
func yuyvToRGB(src []byte, width, height, stride int) ([]byte, error) {
	if stride <= 0 {
		stride = width * 2
	}
	if need := stride * height; len(src) < need {
		return nil, fmt.Errorf("yuyv frame too short: have %d bytes, need %d", len(src), need)
	}
	dst := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		row := src[y*stride:]
		out := dst[y*width*3:]
		for x := 0; x+1 < width; x += 2 {
			i := x * 2
			y0 := int32(row[i])
			u := int32(row[i+1])
			y1 := int32(row[i+2])
			v := int32(row[i+3])
			writeYUV(out[x*3:], y0, u, v)
			writeYUV(out[(x+1)*3:], y1, u, v)
		}
	}
	return dst, nil
}

func writeYUV(dst []byte, y, u, v int32) {
	c := y - 16
	d := u - 128
	e := v - 128
	dst[0] = clampu8((298*c + 409*e + 128) >> 8)
	dst[1] = clampu8((298*c - 100*d - 208*e + 128) >> 8)
	dst[2] = clampu8((298*c + 516*d + 128) >> 8)
}

func clampu8(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// bgr24ToRGB swaps the channel order of a packed BGR24 frame.
func bgr24ToRGB(src []byte, width, height, stride int) ([]byte, error) {
	if stride <= 0 {
		stride = width * 3
	}
	if need := stride * height; len(src) < need {
		return nil, fmt.Errorf("bgr frame too short: have %d bytes, need %d", len(src), need)
	}
	dst := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		row := src[y*stride:]
		out := dst[y*width*3:]
		for x := 0; x < width; x++ {
			i := x * 3
			out[i] = row[i+2]
			out[i+1] = row[i+1]
			out[i+2] = row[i]
		}
	}
	return dst, nil
}

// rgb24Copy repacks an RGB24 frame, dropping any row padding.
func rgb24Copy(src []byte, width, height, stride int) ([]byte, error) {
	if stride <= 0 {
		stride = width * 3
	}
	if need := stride * height; len(src) < need {
		return nil, fmt.Errorf("rgb frame too short: have %d bytes, need %d", len(src), need)
	}
	dst := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		copy(dst[y*width*3:(y+1)*width*3], src[y*stride:])
	}
	return dst, nil
}

// cropSquareSide scales the crop edge, which is referenced to a 1080-pixel
// frame height, to the actual frame, bounded by the frame itself.
func cropSquareSide(width, height, edge int) int {
	side := edge * height / 1080
	if m := min(width, height); side > m {
		side = m
	}
	return max(side, 1)
}

// centerCropResize cuts a centered square out of a tight RGB24 frame and
// nearest-resizes it to edge*edge.
func centerCropResize(rgb []byte, width, height, edge int) []byte {
	side := cropSquareSide(width, height, edge)
	left := width/2 - side/2
	top := height/2 - side/2
	dst := make([]byte, edge*edge*3)
	for y := 0; y < edge; y++ {
		sy := top + y*side/edge
		for x := 0; x < edge; x++ {
			sx := left + x*side/edge
			si := (sy*width + sx) * 3
			di := (y*edge + x) * 3
			dst[di] = rgb[si]
			dst[di+1] = rgb[si+1]
			dst[di+2] = rgb[si+2]
		}
	}
	return dst
}
