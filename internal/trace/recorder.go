package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/l1jgo/zonelights/internal/sink"
)

type msg struct {
	frame   sink.Frame
	release bool
}

// Recorder writes light frames as zstd compressed JSON lines, one file per
// zone visit: <dir>/lights-<zone>-<unix>.jsonl.zst. It implements
// sink.Listener; frames cross to the writer goroutine through a buffered
// channel and are dropped when it is full.
type Recorder struct {
	dir     string
	in      chan msg
	dropped atomic.Uint64
	log     *zap.Logger

	zone int32
	f    *os.File
	enc  *zstd.Encoder
	w    *bufio.Writer

	mu    sync.Mutex
	files []string
}

func NewRecorder(dir string, backlog int, log *zap.Logger) *Recorder {
	return &Recorder{
		dir: dir,
		in:  make(chan msg, backlog),
		log: log,
	}
}

// OnFrame implements sink.Listener.
func (r *Recorder) OnFrame(f sink.Frame) {
	r.enqueue(msg{frame: f})
}

// OnRelease implements sink.Listener.
func (r *Recorder) OnRelease(zoneID int32) {
	r.enqueue(msg{frame: sink.Frame{ZoneID: zoneID}, release: true})
}

func (r *Recorder) enqueue(m msg) {
	select {
	case r.in <- m:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Files returns the trace files opened so far.
func (r *Recorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

// Run writes queued frames until ctx is done, then drains the queue and
// closes the current file.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case m := <-r.in:
					r.handle(m)
				default:
					if err := r.closeFile(); err != nil {
						r.log.Error("trace close", zap.Error(err))
					}
					return
				}
			}
		case m := <-r.in:
			r.handle(m)
		}
	}
}

func (r *Recorder) handle(m msg) {
	if m.release {
		if err := r.closeFile(); err != nil {
			r.log.Error("trace close", zap.Error(err))
		}
		return
	}
	if err := r.write(m.frame); err != nil {
		r.log.Error("trace write", zap.Int32("zone", m.frame.ZoneID), zap.Error(err))
	}
}

func (r *Recorder) write(f sink.Frame) error {
	if r.w == nil || r.zone != f.ZoneID {
		if err := r.open(f.ZoneID); err != nil {
			return err
		}
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	return r.w.WriteByte('\n')
}

func (r *Recorder) open(zoneID int32) error {
	if err := r.closeFile(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(r.dir, fmt.Sprintf("lights-%d-%d.jsonl.zst", zoneID, time.Now().Unix()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	r.f = f
	r.enc = enc
	r.w = bufio.NewWriterSize(enc, 64*1024)
	r.zone = zoneID

	r.mu.Lock()
	r.files = append(r.files, path)
	r.mu.Unlock()
	r.log.Debug("trace file opened", zap.String("path", path))
	return nil
}

func (r *Recorder) closeFile() error {
	var err error
	if r.w != nil {
		err = r.w.Flush()
	}
	if r.enc != nil {
		if cerr := r.enc.Close(); err == nil {
			err = cerr
		}
		r.enc = nil
	}
	if r.f != nil {
		if cerr := r.f.Close(); err == nil {
			err = cerr
		}
		r.f = nil
	}
	r.w = nil
	return err
}

// ReadFrames decodes every frame of a trace file.
func ReadFrames(path string) ([]sink.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []sink.Frame
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var fr sink.Frame
		if err := json.Unmarshal(sc.Bytes(), &fr); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, len(out)+1, err)
		}
		out = append(out, fr)
	}
	return out, sc.Err()
}
