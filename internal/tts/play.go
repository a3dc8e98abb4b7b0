package tts

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// ErrUnsupportedOS means no playback command is known for this platform.
// Configuration error, not retried.
var ErrUnsupportedOS = errors.New("tts: no audio player for this operating system")

// playerCommand maps an OS family to its WAV playback command line.
func playerCommand(goos, wavPath string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{"afplay", wavPath}, nil
	case "linux":
		return []string{"aplay", wavPath}, nil
	case "windows":
		return []string{"powershell", "-c",
			fmt.Sprintf(`(New-Object Media.SoundPlayer "%s").PlaySync();`, wavPath)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
	}
}

func playWAV(ctx context.Context, wavPath string) error {
	argv, err := playerCommand(runtime.GOOS, wavPath)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play %s: %w", wavPath, err)
	}
	return nil
}
