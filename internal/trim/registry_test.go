package trim

import "testing"

type recordingHandle struct {
	fakeHandle
	terminations int
}

func (h *recordingHandle) Terminate() error {
	h.terminations++
	return nil
}

func TestRegistryCancelUnknownJob(t *testing.T) {
	r := NewRegistry()
	if r.Cancel("nope") {
		t.Error("Cancel returned true for an unknown job id")
	}
}

func TestRegistryCancelWithoutLiveProcess(t *testing.T) {
	r := NewRegistry()
	r.begin("job-a")
	defer r.end("job-a")

	// Between process invocations there is nothing to terminate.
	if r.Cancel("job-a") {
		t.Error("Cancel returned true for a job with no running process")
	}
	if r.wasCancelled("job-a") {
		t.Error("failed Cancel must not mark the job cancelled")
	}
}

func TestRegistryCancelLiveProcess(t *testing.T) {
	r := NewRegistry()
	r.begin("job-b")
	defer r.end("job-b")

	h := &recordingHandle{}
	r.setProcess("job-b", h)

	if !r.Cancel("job-b") {
		t.Fatal("Cancel returned false for a job with a live process")
	}
	if h.terminations != 1 {
		t.Errorf("process terminated %d times, want 1", h.terminations)
	}
	if !r.wasCancelled("job-b") {
		t.Error("successful Cancel must mark the job cancelled")
	}
}

func TestRegistryEndClearsCancelledState(t *testing.T) {
	r := NewRegistry()
	r.begin("job-c")
	r.setProcess("job-c", &recordingHandle{})
	r.Cancel("job-c")
	r.end("job-c")

	if r.wasCancelled("job-c") {
		t.Error("cancelled state leaked past end of job")
	}
	if r.Cancel("job-c") {
		t.Error("Cancel returned true after the job ended")
	}
}
