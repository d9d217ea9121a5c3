//go:build linux

package infra

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/nullpane/reflexd/internal/domain"
)

// ioctl request numbers for the capture path, precomputed from the
// _IOR/_IOWR macros in linux/videodev2.h.
const (
	vidiocQuerycap = 0x80685600 // _IOR('V', 0, struct v4l2_capability)
	vidiocGFmt     = 0xc0d05604 // _IOWR('V', 4, struct v4l2_format)

	bufTypeVideoCapture = 1
)

const (
	fourccYUYV = 0x56595559 // packed YUYV 4:2:2
	fourccRGB3 = 0x33424752 // packed RGB24
	fourccBGR3 = 0x33524742 // packed BGR24
)

// V4L2Source reads frames from a v4l2 loopback device, the node a virtual
// camera producer such as OBS feeds. read() based capture is enough here:
// the producer paces the stream, no buffer queue negotiation needed.
type V4L2Source struct {
	path   string
	edge   int
	logger *zap.Logger

	f       *os.File
	card    string
	width   int
	height  int
	stride  int
	convert func(src []byte, width, height, stride int) ([]byte, error)
	raw     []byte
}

// NewV4L2Source targets /dev/video<deviceID> and produces edge*edge RGB
// frames. Nothing is opened until Start.
func NewV4L2Source(deviceID, edge int, logger *zap.Logger) *V4L2Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &V4L2Source{
		path:   fmt.Sprintf("/dev/video%d", deviceID),
		edge:   edge,
		logger: logger,
	}
}

// Start opens the device, reads the negotiated format and validates the
// first grab, so a missing or idle producer fails here with a pointed
// message instead of mid-session.
func (s *V4L2Source) Start() error {
	f, err := os.OpenFile(s.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open capture device %s: %w (is the virtual camera started?)", s.path, err)
	}
	s.f = f

	var caps [104]byte
	if err := ioctlBuf(f.Fd(), vidiocQuerycap, caps[:]); err != nil {
		s.Close()
		return fmt.Errorf("failed to query capabilities of %s: %w", s.path, err)
	}
	s.card = parseCardName(caps[:])

	var fmtBuf [208]byte
	binary.LittleEndian.PutUint32(fmtBuf[0:4], bufTypeVideoCapture)
	if err := ioctlBuf(f.Fd(), vidiocGFmt, fmtBuf[:]); err != nil {
		s.Close()
		return fmt.Errorf("failed to read pixel format of %s: %w", s.path, err)
	}
	pf := parsePixFormat(fmtBuf[:])
	if pf.width == 0 || pf.height == 0 {
		s.Close()
		return fmt.Errorf("capture device %s reports a zero frame size (is a producer feeding it?)", s.path)
	}
	convert, err := converterFor(pf.fourcc)
	if err != nil {
		s.Close()
		return fmt.Errorf("capture device %s: %w", s.path, err)
	}

	s.width = pf.width
	s.height = pf.height
	s.stride = pf.stride
	s.convert = convert
	s.raw = make([]byte, frameBytes(pf))

	if _, err := s.Frame(); err != nil {
		s.Close()
		return fmt.Errorf("first frame from %s failed: %w (is the virtual camera active and fed by a source?)", s.path, err)
	}

	s.logger.Info("capture started",
		zap.String("device", s.path),
		zap.String("card", s.card),
		zap.Int("width", s.width),
		zap.Int("height", s.height),
		zap.String("format", fourccString(pf.fourcc)))
	return nil
}

// Frame blocks until the producer delivers the next frame.
func (s *V4L2Source) Frame() (domain.Frame, error) {
	if s.f == nil {
		return domain.Frame{}, fmt.Errorf("capture device %s is not started", s.path)
	}
	n, err := s.f.Read(s.raw)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("failed to read frame from %s: %w", s.path, err)
	}
	if n == 0 {
		return domain.Frame{}, fmt.Errorf("empty frame from %s", s.path)
	}
	rgb, err := s.convert(s.raw[:n], s.width, s.height, s.stride)
	if err != nil {
		return domain.Frame{}, err
	}
	return domain.Frame{
		Pixels: centerCropResize(rgb, s.width, s.height, s.edge),
		Edge:   s.edge,
		At:     time.Now(),
	}, nil
}

// Close releases the device. Safe after a failed Start and safe twice.
func (s *V4L2Source) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Ensure V4L2Source implements domain.FrameSource.
var _ domain.FrameSource = (*V4L2Source)(nil)

// NewFrameSource returns the platform capture backend, a V4L2 loopback
// reader on Linux.
func NewFrameSource(deviceID, edge int, logger *zap.Logger) domain.FrameSource {
	return NewV4L2Source(deviceID, edge, logger)
}

// ListCaptureDevices probes /dev/video0 through /dev/video9 and labels
// each present node with its driver card name.
func ListCaptureDevices() []domain.MonitorInfo {
	var devices []domain.MonitorInfo
	for i := 0; i < 10; i++ {
		path := fmt.Sprintf("/dev/video%d", i)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		label := fmt.Sprintf("Video Device %d", i)
		if card := probeCardName(path); card != "" {
			label = card
		}
		devices = append(devices, domain.MonitorInfo{
			Label: fmt.Sprintf("%s (%s)", label, path),
			ID:    i,
		})
	}
	return devices
}

func probeCardName(path string) string {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return ""
	}
	defer f.Close()
	var caps [104]byte
	if err := ioctlBuf(f.Fd(), vidiocQuerycap, caps[:]); err != nil {
		return ""
	}
	return parseCardName(caps[:])
}

func ioctlBuf(fd uintptr, req uintptr, buf []byte) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(unsafe.Pointer(&buf[0]))); errno != 0 {
		return errno
	}
	return nil
}

// parseCardName extracts the card field from a raw struct v4l2_capability,
// 32 bytes at offset 16, NUL padded.
func parseCardName(buf []byte) string {
	card := buf[16:48]
	if i := bytes.IndexByte(card, 0); i >= 0 {
		card = card[:i]
	}
	return string(card)
}

// pixFormat is the slice of struct v4l2_pix_format the capture path needs.
// The union inside struct v4l2_format starts at offset 8 on 64-bit.
type pixFormat struct {
	width  int
	height int
	fourcc uint32
	stride int
	size   int
}

func parsePixFormat(buf []byte) pixFormat {
	return pixFormat{
		width:  int(binary.LittleEndian.Uint32(buf[8:12])),
		height: int(binary.LittleEndian.Uint32(buf[12:16])),
		fourcc: binary.LittleEndian.Uint32(buf[16:20]),
		stride: int(binary.LittleEndian.Uint32(buf[24:28])),
		size:   int(binary.LittleEndian.Uint32(buf[28:32])),
	}
}

func converterFor(fourcc uint32) (func(src []byte, width, height, stride int) ([]byte, error), error) {
	switch fourcc {
	case fourccYUYV:
		return yuyvToRGB, nil
	case fourccRGB3:
		return rgb24Copy, nil
	case fourccBGR3:
		return bgr24ToRGB, nil
	default:
		return nil, fmt.Errorf("unsupported pixel format %s; set the virtual camera output to YUYV, RGB24 or BGR24", fourccString(fourcc))
	}
}

// frameBytes sizes the read buffer: the driver's sizeimage when sane,
// otherwise a packed frame for the negotiated format.
func frameBytes(pf pixFormat) int {
	bpp := 3
	if pf.fourcc == fourccYUYV {
		bpp = 2
	}
	stride := pf.stride
	if stride <= 0 {
		stride = pf.width * bpp
	}
	return max(pf.size, stride*pf.height)
}

func fourccString(f uint32) string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}
