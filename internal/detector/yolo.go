package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// YOLODetector implements Detector using a Python subprocess running the
// trained YOLO hand keypoint model. Frames are sent as length-prefixed JPEG
// bytes; the service replies with one JSON line per frame.
type YOLODetector struct {
	config    Config
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewYOLODetector creates a new YOLO keypoint detector.
// Returns ErrUnavailable if the model weights or the bridge script cannot
// be found. The Python process is started lazily on first detection.
func NewYOLODetector(config Config) (*YOLODetector, error) {
	if config.ModelPath == "" || !fileExists(config.ModelPath) {
		return nil, fmt.Errorf("%w: model weights not found at %q", ErrUnavailable, config.ModelPath)
	}
	if findServiceScript() == "" {
		return nil, fmt.Errorf("%w: palm_service.py not found", ErrUnavailable)
	}

	return &YOLODetector{config: config}, nil
}

// Detect analyzes a frame and returns the detected hand landmarks.
// A ctx deadline bounds the whole exchange; on timeout the subprocess is
// shut down (it is restarted on the next call) so the stream never desyncs.
func (d *YOLODetector) Detect(ctx context.Context, frame *gocv.Mat) (*HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("detect: empty frame")
	}

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	type result struct {
		hand *HandLandmarks
		err  error
	}
	ch := make(chan result, 1)

	// The goroutine works on its own copies of the pipe handles so shutdown
	// can safely clear the struct fields once the exchange has finished.
	stdin, stdout := d.stdin, d.stdout

	go func() {
		hand, err := exchange(stdin, stdout, frame)
		ch <- result{hand, err}
	}()

	select {
	case <-ctx.Done():
		// The pending read cannot be cancelled; kill the process to unblock
		// it, then wait for the goroutine before Wait reclaims the pipes.
		if d.cmd != nil && d.cmd.Process != nil {
			d.cmd.Process.Kill()
		}
		<-ch
		d.shutdown()
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		d.resetIdleTimer()
		return r.hand, nil
	}
}

// Close shuts down the Python process.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

// exchange encodes one frame and runs a request/response round trip on the
// given pipes.
func exchange(stdin io.Writer, stdout *bufio.Reader, frame *gocv.Mat) (*HandLandmarks, error) {
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	return sendFrame(stdin, stdout, buf.GetBytes())
}

// sendFrame writes one length-prefixed frame and reads one JSON response
// line. A closed or killed service surfaces as a read error, never a hang.
func sendFrame(stdin io.Writer, stdout *bufio.Reader, data []byte) (*HandLandmarks, error) {
	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Points []Landmark `json:"points"`
		Error  string     `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if response.Error == "no_hand" || len(response.Points) == 0 {
		return nil, ErrNoHand
	}
	if response.Error != "" {
		return nil, fmt.Errorf("keypoint service: %s", response.Error)
	}
	if len(response.Points) < NumLandmarks {
		return nil, fmt.Errorf("keypoint service returned %d points, want %d", len(response.Points), NumLandmarks)
	}

	hand := &HandLandmarks{}
	copy(hand.Points[:], response.Points[:NumLandmarks])
	return hand, nil
}

func (d *YOLODetector) ensureStarted() error {
	if d.started {
		return nil
	}

	scriptPath := findServiceScript()
	if scriptPath == "" {
		return fmt.Errorf("%w: palm_service.py not found", ErrUnavailable)
	}

	pythonPath := d.config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, scriptPath, d.config.ModelPath)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Keep the service's diagnostics visible
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start keypoint service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

// shutdown reclaims the subprocess and its pipes. Caller holds d.mu and
// must ensure no exchange is in flight.
func (d *YOLODetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *YOLODetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(30*time.Second, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/palm_service.py",
		"../scripts/palm_service.py",
		filepath.Join(execDir, "scripts/palm_service.py"),
		filepath.Join(os.Getenv("HOME"), ".hasta/scripts/palm_service.py"),
	}

	for _, path := range candidates {
		if fileExists(path) {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".hasta/venv/bin/python"),
	}

	for _, path := range candidates {
		if fileExists(path) {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
