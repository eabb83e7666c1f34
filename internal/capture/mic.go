package capture

import (
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// MicSource reads mono frames from the default input device. One reader
// goroutine pulls from the portaudio stream and fans frames out on a
// buffered channel; frames are dropped when the consumer lags.
type MicSource struct {
	sampleRate int
	frameSize  int

	stream *portaudio.Stream
	buf    []float32
	frames chan []float32
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewMicSource(sampleRate, frameSize int) *MicSource {
	return &MicSource{
		sampleRate: sampleRate,
		frameSize:  frameSize,
	}
}

func (m *MicSource) Start() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize audio: %w", err)
	}

	m.buf = make([]float32, m.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), m.frameSize, m.buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	m.stream = stream
	m.frames = make(chan []float32, 8)
	m.stop = make(chan struct{})

	m.wg.Add(1)
	go m.readLoop()

	return nil
}

func (m *MicSource) Frames() <-chan []float32 {
	return m.frames
}

func (m *MicSource) readLoop() {
	defer m.wg.Done()
	defer close(m.frames)

	for {
		select {
		case <-m.stop:
			return
		default:
		}

		if err := m.stream.Read(); err != nil {
			select {
			case <-m.stop:
				return
			default:
			}
			log.Printf("[Capture] audio read failed: %v", err)
			return
		}

		frame := make([]float32, len(m.buf))
		copy(frame, m.buf)

		select {
		case m.frames <- frame:
		default:
			// Consumer is behind; fresh audio beats stale audio.
		}
	}
}

func (m *MicSource) Stop() error {
	if m.stream == nil {
		return nil
	}

	close(m.stop)
	err := m.stream.Stop()
	m.wg.Wait()

	if closeErr := m.stream.Close(); err == nil {
		err = closeErr
	}
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}

	m.stream = nil
	return err
}
