package process

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"unicode/utf8"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"github.com/pkg/errors"
)

const (
	maxLine     = 64 * 1024 * 1024
	maxErrShown = 500
)

//LineFunc receives stdout lines of the running process
type LineFunc func(line string)

//Runner executes external commands
type Runner struct {
	reapLock  *sync.RWMutex
	errWriter io.Writer
	Env       []string
}

//NewRunner creates runner. reapLock may be nil if no child reaper runs in the process.
func NewRunner(reapLock *sync.RWMutex) *Runner {
	return &Runner{reapLock: reapLock, errWriter: io.Discard}
}

//WithLog forwards stderr of the processes to w
func (r *Runner) WithLog(w io.Writer) *Runner {
	r.errWriter = w
	return r
}

//Run executes the command, returns the whole stdout. onLine is invoked for every stdout line.
func (r *Runner) Run(ctx context.Context, name string, args []string, onLine LineFunc) (string, error) {
	cmdapp.Log.Infof("Running command: %s %s", name, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), r.Env...)
	var errBuffer bytes.Buffer
	cmd.Stderr = io.MultiWriter(&errBuffer, r.errWriter)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", errors.Wrapf(err, "Can't init stdout of %s", name)
	}

	if r.reapLock != nil {
		r.reapLock.RLock()
		defer r.reapLock.RUnlock()
	}
	if err := cmd.Start(); err != nil {
		return "", errors.Wrapf(err, "Can't start %s", name)
	}

	var outBuffer strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		line := scanner.Text()
		outBuffer.WriteString(line)
		outBuffer.WriteString("\n")
		if onLine != nil {
			onLine(line)
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// drain so the process is not blocked on a full pipe
		_, _ = io.Copy(io.Discard, stdout)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return outBuffer.String(), errors.Wrapf(ctx.Err(), "%s interrupted", name)
		}
		return outBuffer.String(), errors.Wrapf(err, "%s failed: %s", name, tail(errBuffer.String()))
	}
	if scanErr != nil {
		return outBuffer.String(), errors.Wrapf(scanErr, "Can't read output of %s", name)
	}
	return outBuffer.String(), nil
}

//LookPath checks if the executable is available
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrShown {
		i := len(s) - maxErrShown
		for i < len(s) && !utf8.RuneStart(s[i]) {
			i++
		}
		return "..." + s[i:]
	}
	return s
}
