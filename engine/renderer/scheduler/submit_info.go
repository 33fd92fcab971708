package scheduler

// SubmitInfo is the caller's part of a submission: semaphores to wait on
// before execution, semaphores to signal after, and an optional fence. The
// scheduler appends its own timeline signal.
//
// Wait slots carry fixed stages: the first waits at AllCommands (typically
// a swapchain acquire), the second at ColorAttachmentOutput (a resource
// ready signal). Binary semaphores take a value of 0.
type SubmitInfo struct {
	WaitSemaphores   []Handle
	WaitValues       []uint64
	SignalSemaphores []Handle
	SignalValues     []uint64
	Fence            Handle
}

func (s *SubmitInfo) AddWait(semaphore Handle, value uint64) {
	s.WaitSemaphores = append(s.WaitSemaphores, semaphore)
	s.WaitValues = append(s.WaitValues, value)
}

func (s *SubmitInfo) AddSignal(semaphore Handle, value uint64) {
	s.SignalSemaphores = append(s.SignalSemaphores, semaphore)
	s.SignalValues = append(s.SignalValues, value)
}

var waitStageMasks = [2]PipelineStage{
	PipelineStageAllCommands,
	PipelineStageColorAttachmentOutput,
}

// waitStages returns one stage per wait semaphore. Slots past the fixed
// pair wait at AllCommands.
func waitStages(count int) []PipelineStage {
	stages := make([]PipelineStage, count)
	for i := range stages {
		if i < len(waitStageMasks) {
			stages[i] = waitStageMasks[i]
		} else {
			stages[i] = PipelineStageAllCommands
		}
	}
	return stages
}
