package capture

// FrameSource produces fixed-size audio frames. Implementations must not
// block on a slow consumer: when the frames channel is full the frame is
// dropped, since stale audio is worse than a gap.
type FrameSource interface {
	Start() error
	Frames() <-chan []float32
	Stop() error
}
