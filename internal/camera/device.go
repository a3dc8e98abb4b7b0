package camera

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/blackjack/webcam"
)

const (
	pixFmtMJPEG = webcam.PixelFormat(0x47504A4D) // 'MJPG'
	pixFmtYUYV  = webcam.PixelFormat(0x56595559) // 'YUYV'
)

// Device is an open V4L2 camera with a negotiated pixel format.
type Device struct {
	cam    *webcam.Webcam
	format webcam.PixelFormat
	width  uint32
	height uint32
}

// OpenDevice opens path and negotiates a format, preferring MJPEG (frames
// arrive JPEG-encoded already) with a YUYV fallback.
func OpenDevice(path string, width, height uint32) (*Device, error) {
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, err
	}

	supported := cam.GetSupportedFormats()
	for _, want := range []webcam.PixelFormat{pixFmtMJPEG, pixFmtYUYV} {
		if _, ok := supported[want]; !ok {
			continue
		}
		f, w, h, err := cam.SetImageFormat(want, width, height)
		if err != nil {
			continue
		}
		return &Device{cam: cam, format: f, width: w, height: h}, nil
	}

	cam.Close()
	return nil, errors.New("no usable pixel format")
}

// Stream configures the buffer queue and starts streaming.
func (d *Device) Stream(bufferCount uint32, fps float32) error {
	if bufferCount > 0 {
		if err := d.cam.SetBufferCount(bufferCount); err != nil {
			return fmt.Errorf("set buffer count: %w", err)
		}
	}
	if fps > 0 {
		// Some drivers reject framerate control; not fatal.
		_ = d.cam.SetFramerate(fps)
	}
	if err := d.cam.StartStreaming(); err != nil {
		return fmt.Errorf("start streaming: %w", err)
	}
	return nil
}

// ReadJPEG blocks for at most timeoutSec on the next frame and returns it
// JPEG-encoded.
func (d *Device) ReadJPEG(timeoutSec uint32) ([]byte, error) {
	if err := d.cam.WaitForFrame(timeoutSec); err != nil {
		return nil, err
	}
	frame, err := d.cam.ReadFrame()
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, errors.New("empty frame")
	}

	if d.format == pixFmtMJPEG {
		out := make([]byte, len(frame))
		copy(out, frame)
		return out, nil
	}
	return yuyvToJPEG(frame, int(d.width), int(d.height))
}

// Close stops streaming and releases the device handle.
func (d *Device) Close() {
	d.cam.StopStreaming()
	d.cam.Close()
}

// yuyvToJPEG converts a packed YUYV 4:2:2 frame to JPEG.
func yuyvToJPEG(frame []byte, w, h int) ([]byte, error) {
	if len(frame) < w*h*2 {
		return nil, fmt.Errorf("short yuyv frame: %d bytes for %dx%d", len(frame), w, h)
	}

	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x += 2 {
			i := (y*w + x) * 2
			y0, u, y1, v := frame[i], frame[i+1], frame[i+2], frame[i+3]

			img.Y[y*img.YStride+x] = y0
			if x+1 < w {
				img.Y[y*img.YStride+x+1] = y1
			}
			ci := y*img.CStride + x/2
			img.Cb[ci] = u
			img.Cr[ci] = v
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
