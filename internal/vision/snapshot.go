// Package vision grabs single webcam frames for the reasoning agent and
// answers visually-grounded questions through the multimodal completion
// endpoint.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/khushiuttamani/ai-assistant/internal/camera"
)

// ErrNoCamera means no device in the scan range could be opened.
var ErrNoCamera = errors.New("vision: no camera available")

const (
	frameWidth  = 640
	frameHeight = 480

	// Frames discarded after opening, so auto-exposure and focus settle
	// before the frame we actually keep.
	warmupFrames = 10
)

// FrameSource lends the freshest frame of an already-running camera owner,
// so the tool does not have to open the device a second time.
type FrameSource interface {
	FrameJPEG() []byte
}

type Tool struct {
	client  openai.Client
	model   string
	devices []string
	gate    *camera.Gate
	borrow  FrameSource
}

// NewTool builds the snapshot tool. borrow may be nil; when set and the
// camera gate is held by its owner, Capture borrows a frame instead of
// opening the device.
func NewTool(apiKey, model string, devices []string, gate *camera.Gate, borrow FrameSource, opts ...option.RequestOption) *Tool {
	opts = append(opts, option.WithAPIKey(apiKey))
	return &Tool{
		client:  openai.NewClient(opts...),
		model:   model,
		devices: devices,
		gate:    gate,
		borrow:  borrow,
	}
}

// Capture returns one webcam frame as a base64 JPEG string. The device is
// released before returning on every path.
func (t *Tool) Capture(ctx context.Context) (string, error) {
	if !t.gate.TryAcquire() {
		// Preview currently owns the device; use its freshest frame.
		if t.borrow != nil {
			if jpg := t.borrow.FrameJPEG(); len(jpg) > 0 {
				return base64.StdEncoding.EncodeToString(jpg), nil
			}
		}
		return "", ErrNoCamera
	}
	defer t.gate.Release()

	jpg, err := t.captureFromDevice(ctx)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(jpg), nil
}

// captureFromDevice scans the device range until one opens, warms it up and
// reads a single frame.
func (t *Tool) captureFromDevice(ctx context.Context) ([]byte, error) {
	for _, path := range t.devices {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		jpg, err := captureOne(path)
		if err != nil {
			log.Debug("camera capture failed", "device", path, "err", err)
			continue
		}
		return jpg, nil
	}
	return nil, ErrNoCamera
}

func captureOne(path string) ([]byte, error) {
	dev, err := camera.OpenDevice(path, frameWidth, frameHeight)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	if err := dev.Stream(0, 0); err != nil {
		return nil, err
	}

	var frame []byte
	for i := 0; i <= warmupFrames; i++ {
		frame, err = dev.ReadJPEG(2)
		if err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// AnswerAboutImage captures a frame and asks the vision model about it in a
// single multimodal request.
func (t *Tool) AnswerAboutImage(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", errors.New("vision: empty query")
	}

	img, err := t.Capture(ctx)
	if err != nil {
		return "", err
	}

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(query),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: "data:image/jpeg;base64," + img,
				}),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("vision: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
