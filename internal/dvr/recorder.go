package dvr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrRecorderUnavailable = errors.New("ffmpeg not found")
	ErrJobRunning          = errors.New("capture job already running")
)

// Job is one capture: pull the channel's stream and write it to disk
// until the deadline.
type Job struct {
	ID          string
	RecordingID int64
	StreamURL   string
	OutputPath  string
	Deadline    time.Time
	Profile     string
}

// JobResult reports a finished capture. Err is nil when the job ran to
// its deadline or was stopped; anything else means ffmpeg died early.
type JobResult struct {
	JobID       string
	RecordingID int64
	OutputPath  string
	Err         error
}

type runningJob struct {
	cancel context.CancelFunc
}

// Recorder runs ffmpeg capture processes. Stream captures write MPEG-TS:
// the container stays playable even when the process is killed mid-write.
type Recorder struct {
	ffmpegPath string
	logger     zerolog.Logger

	results chan JobResult
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*runningJob
}

// NewRecorder creates an ffmpeg recorder. Path defaults to "ffmpeg" on PATH.
func NewRecorder(ffmpegPath string, logger zerolog.Logger) *Recorder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Recorder{
		ffmpegPath: ffmpegPath,
		logger:     logger.With().Str("component", "recorder").Logger(),
		results:    make(chan JobResult, 16),
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[string]*runningJob),
	}
}

// Available reports whether the ffmpeg binary can be resolved.
func (r *Recorder) Available() bool {
	_, err := exec.LookPath(r.ffmpegPath)
	return err == nil
}

// Results delivers one JobResult per started job.
func (r *Recorder) Results() <-chan JobResult {
	return r.results
}

// Running reports whether a job is currently capturing.
func (r *Recorder) Running(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[jobID]
	return ok
}

// ActiveCount returns the number of captures in flight.
func (r *Recorder) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Start launches a capture. The process gets SIGINT at the deadline so
// ffmpeg finalizes the file, and is killed if it ignores the signal.
func (r *Recorder) Start(job Job) error {
	if !r.Available() {
		return fmt.Errorf("%w: %s", ErrRecorderUnavailable, r.ffmpegPath)
	}

	r.mu.Lock()
	if _, ok := r.jobs[job.ID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobRunning, job.ID)
	}

	ctx, cancel := context.WithDeadline(r.ctx, job.Deadline)
	cmd := exec.CommandContext(ctx, r.ffmpegPath, captureArgs(job)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 10 * time.Second

	tail := &tailBuffer{limit: 4096}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		cancel()
		r.mu.Unlock()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	r.jobs[job.ID] = &runningJob{cancel: cancel}
	r.mu.Unlock()

	r.logger.Info().
		Str("jobId", job.ID).
		Str("output", job.OutputPath).
		Time("until", job.Deadline).
		Msg("capture started")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		err := cmd.Wait()
		// A deadline or stop is the normal way a capture ends.
		if ctx.Err() != nil {
			err = nil
		} else if err != nil {
			if msg := tail.String(); msg != "" {
				err = fmt.Errorf("%w: %s", err, msg)
			}
		}

		r.mu.Lock()
		delete(r.jobs, job.ID)
		r.mu.Unlock()

		select {
		case r.results <- JobResult{JobID: job.ID, RecordingID: job.RecordingID, OutputPath: job.OutputPath, Err: err}:
		case <-r.ctx.Done():
		}
	}()
	return nil
}

// Stop interrupts a running capture. Returns false when no such job exists.
func (r *Recorder) Stop(jobID string) bool {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	job.cancel()
	return true
}

// Close stops every capture and waits for the processes to exit.
func (r *Recorder) Close() {
	r.cancel()
	r.wg.Wait()
}

// captureArgs builds the ffmpeg command line for a capture job.
func captureArgs(job Job) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
	}
	if strings.HasPrefix(job.StreamURL, "http://") || strings.HasPrefix(job.StreamURL, "https://") {
		args = append(args,
			"-reconnect", "1",
			"-reconnect_streamed", "1",
			"-reconnect_delay_max", "10",
		)
	}
	args = append(args, "-i", job.StreamURL)
	args = append(args, profileArgs(job.Profile)...)
	args = append(args, "-f", "mpegts", "-y", job.OutputPath)
	return args
}

// profileArgs maps an encoding profile onto codec arguments. Stream copy
// is the default: transcoding a live capture costs CPU for no quality.
func profileArgs(profile string) []string {
	switch strings.ToLower(profile) {
	case "", "copy":
		return []string{"-c", "copy"}
	case "h264":
		return []string{"-c:v", "libx264", "-preset", "veryfast", "-crf", "23", "-c:a", "aac", "-b:a", "160k"}
	case "h265", "hevc":
		return []string{"-c:v", "libx265", "-preset", "fast", "-crf", "26", "-c:a", "aac", "-b:a", "160k"}
	default:
		return []string{"-c", "copy"}
	}
}

// tailBuffer keeps the last limit bytes written, so error reports carry
// the end of ffmpeg's stderr rather than its first warning.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
