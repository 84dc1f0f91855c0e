// Package nlog provides a small buffered, leveled logger used for heap leak
// reports, bus receiver-table and receiver-panic errors, cache fetch errors
// and watchdog warnings instead of fmt.Println or the stdlib "log" package.
// The report package does not log through it.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvstream/adk-core/cmn/mono"
)

const (
	bufSize     = 64 * 1024
	maxLineSize = 2 * 1024
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{sevInfo: 'I', sevWarn: 'W', sevErr: 'E'}

type nlog struct {
	mw      sync.Mutex
	w       *os.File
	buf     bytes.Buffer
	written atomic.Int64
	last    atomic.Int64
}

var (
	toStderr     bool
	alsoToStderr bool
	logDir       string

	// MaxSize is the byte threshold at which the current log file is
	// closed; the next write reopens the file named for the current day
	// under logDir and appends to it.
	MaxSize int64 = 4 * 1024 * 1024

	nlogs = [...]*nlog{sevInfo: {}, sevWarn: {}, sevErr: {}}
)

// InitFlags registers the conventional -logtostderr/-alsologtostderr flags;
// call before flag.Parse().
func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

// SetLogDir points rotated log files at dir. With an empty dir nothing is
// written to files: warnings and errors still go to stderr, and info lines
// reach stderr only before flag.Parse or with -logtostderr/-alsologtostderr.
func SetLogDir(dir string) { logDir = dir }

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth, "", args...) }
func Infoln(args ...any)                 { log(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 0, format, args...) }

// Flush writes any buffered lines out. Pass true on process exit to also
// close the underlying file.
func Flush(exit ...bool) {
	ex := len(exit) > 0 && exit[0]
	for _, n := range nlogs {
		n.mw.Lock()
		if n.buf.Len() > 0 {
			n.writeLocked(nil)
		}
		if ex && n.w != nil {
			n.w.Sync()
			n.w.Close()
		}
		n.mw.Unlock()
	}
}

func log(sev severity, depth int, format string, args ...any) {
	var line bytes.Buffer
	formatHdr(sev, depth+1, &line)
	if format == "" {
		fmt.Fprintln(&line, args...)
	} else {
		fmt.Fprintf(&line, format, args...)
		if b := line.Bytes(); len(b) == 0 || b[len(b)-1] != '\n' {
			line.WriteByte('\n')
		}
	}

	if !flag.Parsed() || toStderr {
		os.Stderr.Write(line.Bytes())
		return
	}
	if alsoToStderr || sev >= sevWarn {
		os.Stderr.Write(line.Bytes())
	}
	n := nlogs[sev]
	n.mw.Lock()
	n.writeLocked(line.Bytes())
	n.mw.Unlock()
}

// under n.mw
func (n *nlog) writeLocked(b []byte) {
	if logDir == "" {
		return
	}
	n.buf.Write(b)
	if n.buf.Len() < bufSize-maxLineSize && b != nil {
		return
	}
	if n.w == nil {
		if f, err := n.open(); err == nil {
			n.w = f
		} else {
			os.Stderr.Write(n.buf.Bytes())
			n.buf.Reset()
			return
		}
	}
	written, _ := n.w.Write(n.buf.Bytes())
	n.written.Add(int64(written))
	n.buf.Reset()
	n.last.Store(mono.NanoTime())

	if n.written.Load() >= MaxSize {
		n.w.Close()
		n.w = nil
		n.written.Store(0)
	}
}

func (n *nlog) open() (*os.File, error) {
	return os.OpenFile(filepath.Join(logDir, logFileName(n)), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func logFileName(n *nlog) string {
	sev := sevText(n)
	now := time.Now()
	return fmt.Sprintf("adkcore.%s.%s.log", sev, now.Format("20060102"))
}

func sevText(n *nlog) string {
	switch n {
	case nlogs[sevWarn]:
		return "WARNING"
	case nlogs[sevErr]:
		return "ERROR"
	default:
		return "INFO"
	}
}

func formatHdr(sev severity, depth int, fb *bytes.Buffer) {
	_, fn, ln, ok := runtime.Caller(2 + depth)
	fb.WriteByte(sevChar[sev])
	fb.WriteByte(' ')
	fb.WriteString(time.Now().Format("15:04:05.000000"))
	fb.WriteByte(' ')
	if !ok {
		return
	}
	if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
		fn = fn[idx+1:]
	}
	fb.WriteString(fn)
	fb.WriteByte(':')
	fb.WriteString(strconv.Itoa(ln))
	fb.WriteByte(' ')
}
