package media

import (
	"encoding/binary"
	"io"
	"os/exec"
)

// PCMStream wraps the ffmpeg subprocess producing raw s16le mono samples,
// grounded on other_examples/a8e42ee1_naozine-zbor's ffmpeg-stdout-to-VAD
// pipe. ReadSamples converts bytes to float32 in [-1, 1] the way Silero VAD
// expects them.
type PCMStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	buf    []byte
}

// ReadSamples fills out with up to len(out) float32 samples, returning the
// count actually read. io.EOF is returned once the stream is exhausted.
func (p *PCMStream) ReadSamples(out []float32) (int, error) {
	need := len(out) * 2
	if cap(p.buf) < need {
		p.buf = make([]byte, need)
	}
	buf := p.buf[:need]

	n, err := io.ReadFull(p.stdout, buf)
	if n == 0 {
		return 0, err
	}

	samples := n / 2
	for i := 0; i < samples; i++ {
		v := int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
		out[i] = float32(v) / 32768.0
	}

	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return samples, err
}

// Close waits for the ffmpeg subprocess to exit.
func (p *PCMStream) Close() error {
	p.stdout.Close()
	return p.cmd.Wait()
}
