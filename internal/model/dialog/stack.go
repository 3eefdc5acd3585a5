package dialog

// Frame is a saved stage and data pair.
type Frame struct {
	Stage Stage         `json:"stage"`
	Data  CollectedData `json:"data"`
}

// ContextStack keeps frames saved before a sub-flow so the booking can be
// resumed later. Frames unwind in reverse order.
type ContextStack struct {
	frames []Frame
}

// Push appends a frame.
func (s *ContextStack) Push(f Frame) {
	s.frames = append(s.frames, f)
}

// Pop removes the most recent frame.
func (s *ContextStack) Pop() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	top := s.frames[len(s.frames)-1]
	s.frames[len(s.frames)-1] = Frame{}
	s.frames = s.frames[:len(s.frames)-1]
	return top, true
}

// Peek returns the most recent frame without removing it.
func (s *ContextStack) Peek() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

func (s *ContextStack) Len() int {
	return len(s.frames)
}

func (s *ContextStack) Empty() bool {
	return len(s.frames) == 0
}

// Clear drops every frame.
func (s *ContextStack) Clear() {
	s.frames = nil
}

func (s ContextStack) clone() ContextStack {
	if len(s.frames) == 0 {
		return ContextStack{}
	}
	frames := make([]Frame, len(s.frames))
	copy(frames, s.frames)
	return ContextStack{frames: frames}
}
