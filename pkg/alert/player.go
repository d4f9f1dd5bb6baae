package alert

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrAssetMissing is returned when the alert clip cannot be opened.
var ErrAssetMissing = errors.New("audio asset missing")

// FilePlayer streams a raw PCM asset to an output device in fixed-size
// frames, one frame per Step.
type FilePlayer struct {
	asset  string
	output io.Writer
	closer io.Closer
	frame  []byte
	clip   *os.File
}

// NewFilePlayer fails with ErrAssetMissing when the asset is absent so
// a missing storage medium aborts startup.
func NewFilePlayer(asset string, output io.WriteCloser, frameBytes int) (*FilePlayer, error) {
	info, err := os.Stat(filepath.Clean(asset))
	if err != nil || info.IsDir() {
		return nil, errors.Wrapf(ErrAssetMissing, "%s", asset)
	}
	return &FilePlayer{
		asset:  asset,
		output: output,
		closer: output,
		frame:  make([]byte, frameBytes),
	}, nil
}

// OpenAudioDevice opens the PCM sink, usually a FIFO consumed by the
// sound server. An empty path discards audio.
func OpenAudioDevice(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopWriteCloser{io.Discard}, nil
	}
	device, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, "open audio device")
	}
	return device, nil
}

func (p *FilePlayer) Start() error {
	if p.clip != nil {
		return nil
	}
	clip, err := os.Open(filepath.Clean(p.asset))
	if err != nil {
		return errors.Wrapf(ErrAssetMissing, "%s: %v", p.asset, err)
	}
	p.clip = clip
	return nil
}

func (p *FilePlayer) Stop() error {
	if p.clip == nil {
		return nil
	}
	err := p.clip.Close()
	p.clip = nil
	return err
}

func (p *FilePlayer) IsPlaying() bool {
	return p.clip != nil
}

// Step writes the next frame. The clip stops by itself at end of file.
func (p *FilePlayer) Step() error {
	if p.clip == nil {
		return nil
	}
	n, err := p.clip.Read(p.frame)
	if n > 0 {
		if _, writeErr := p.output.Write(p.frame[:n]); writeErr != nil {
			_ = p.Stop()
			return errors.Wrap(writeErr, "write audio frame")
		}
	}
	if err == io.EOF {
		return p.Stop()
	}
	if err != nil {
		_ = p.Stop()
		return errors.Wrap(err, "read audio frame")
	}
	return nil
}

// Close stops playback and releases the output device.
func (p *FilePlayer) Close() error {
	stopErr := p.Stop()
	if p.closer == nil {
		return stopErr
	}
	if err := p.closer.Close(); err != nil {
		return err
	}
	p.closer = nil
	return stopErr
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
