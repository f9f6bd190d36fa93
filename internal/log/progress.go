package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ProgressIndicator renders a single-line progress bar for a scan
type ProgressIndicator struct {
	mu           sync.Mutex
	out          io.Writer
	name         string
	total        int
	current      int
	startTime    time.Time
	showProgress bool
	showETA      bool
	done         bool
}

// ProgressConfig configures progress indicator behavior
type ProgressConfig struct {
	ShowProgress bool
	ShowETA      bool
}

// DefaultProgressConfig shows the bar and ETA
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{ShowProgress: true, ShowETA: true}
}

// QuietProgressConfig prints only the completion line
func QuietProgressConfig() ProgressConfig {
	return ProgressConfig{}
}

// NewProgressIndicator creates a new progress indicator writing to out
func NewProgressIndicator(out io.Writer, name string, total int, config ProgressConfig) *ProgressIndicator {
	return &ProgressIndicator{
		out:          out,
		name:         name,
		total:        total,
		startTime:    time.Now(),
		showProgress: config.ShowProgress,
		showETA:      config.ShowETA,
	}
}

// Update sets the current progress value
func (pi *ProgressIndicator) Update(current int) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.done {
		return
	}
	pi.current = current
	if pi.showProgress || pi.showETA {
		fmt.Fprint(pi.out, pi.render())
	}
}

// Finish completes the progress indicator
func (pi *ProgressIndicator) Finish() {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.done {
		return
	}
	pi.done = true
	duration := time.Since(pi.startTime)
	fmt.Fprintf(pi.out, "\r\033[K%s completed (%d/%d steps, %v)\n", pi.name, pi.current, pi.total, duration.Round(time.Millisecond))
}

// Fail marks the progress as failed
func (pi *ProgressIndicator) Fail(reason string) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.done {
		return
	}
	pi.done = true
	duration := time.Since(pi.startTime)
	fmt.Fprintf(pi.out, "\r\033[K%s failed: %s (%v)\n", pi.name, reason, duration.Round(time.Millisecond))
}

func (pi *ProgressIndicator) render() string {
	var output strings.Builder

	// Clear line and return to beginning
	output.WriteString("\r\033[K")
	output.WriteString(pi.name)

	if pi.showProgress && pi.total > 0 {
		percentage := float64(pi.current) / float64(pi.total) * 100
		barWidth := 20
		filled := barWidth * pi.current / pi.total

		output.WriteString(" [")
		output.WriteString(strings.Repeat("█", filled))
		output.WriteString(strings.Repeat("░", barWidth-filled))
		output.WriteString(fmt.Sprintf("] %d/%d (%.1f%%)", pi.current, pi.total, percentage))
	} else if pi.total > 0 {
		output.WriteString(fmt.Sprintf(" (%d/%d)", pi.current, pi.total))
	}

	if pi.showETA && pi.total > 0 && pi.current > 0 {
		elapsed := time.Since(pi.startTime)
		rate := float64(pi.current) / elapsed.Seconds()
		remaining := pi.total - pi.current
		eta := time.Duration(float64(remaining) / rate * float64(time.Second))
		output.WriteString(fmt.Sprintf(" ETA: %v", eta.Round(time.Second)))
	}

	return output.String()
}

// StepLogger logs a fixed sequence of named steps, e.g. the scans behind
// "events --kind all"
type StepLogger struct {
	steps       []string
	currentStep int
	started     time.Time
	stepStart   time.Time
	stepTimes   []time.Duration
}

// NewStepLogger creates a step logger for the given sequence
func NewStepLogger(steps []string) *StepLogger {
	now := time.Now()
	return &StepLogger{
		steps:       steps,
		currentStep: -1,
		started:     now,
		stepStart:   now,
		stepTimes:   make([]time.Duration, len(steps)),
	}
}

// StartStep completes the running step and begins stepName
func (sl *StepLogger) StartStep(stepName string) {
	stepIndex := -1
	for i, step := range sl.steps {
		if step == stepName {
			stepIndex = i
			break
		}
	}

	if stepIndex == -1 {
		log.Warn().Str("step", stepName).Msg("Unknown step")
		return
	}

	sl.CompleteStep()
	sl.currentStep = stepIndex
	sl.stepStart = time.Now()

	log.Info().
		Str("step", stepName).
		Int("step_number", stepIndex+1).
		Int("total_steps", len(sl.steps)).
		Msg("Starting step")
}

// CompleteStep records the duration of the running step
func (sl *StepLogger) CompleteStep() {
	if sl.currentStep < 0 || sl.stepTimes[sl.currentStep] != 0 {
		return
	}
	d := time.Since(sl.stepStart)
	if d == 0 {
		d = time.Nanosecond
	}
	sl.stepTimes[sl.currentStep] = d

	log.Debug().
		Str("step", sl.steps[sl.currentStep]).
		Dur("duration", d).
		Msg("Step completed")
}

// Finish completes the last step and logs the timing summary
func (sl *StepLogger) Finish() {
	sl.CompleteStep()
	total := time.Since(sl.started)

	ev := log.Info().Dur("total_duration", total)
	for i, step := range sl.steps {
		ev = ev.Dur(step, sl.stepTimes[i])
	}
	ev.Msg("All steps completed")
}

// Durations returns the recorded duration per step; zero for steps never run
func (sl *StepLogger) Durations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(sl.steps))
	for i, step := range sl.steps {
		out[step] = sl.stepTimes[i]
	}
	return out
}
