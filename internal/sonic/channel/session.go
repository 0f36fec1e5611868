// Copyright 2026 The Sonic Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package channel implements the per-connection state machine from spec
// §4.H: mode negotiation via START, synchronous ingest/control command
// handling, and asynchronous search dispatch onto the shared worker
// pool.
package channel

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"sonic/internal/sonic/executor"
	"sonic/internal/sonic/lexer"
	"sonic/internal/sonic/protocol"
	"sonic/internal/sonic/sonicerr"
	"sonic/internal/sonic/tasker"
	"sonic/internal/sonic/telemetry"
)

// Server owns the shared search pool and accepts connections onto
// per-connection sessions (spec §5, "a fixed TCP acceptor thread; one
// thread per active connection").
type Server struct {
	cfg      Config
	exec     *executor.Executor
	tasker   *tasker.Tasker
	pool     *searchPool
	logger   *log.Logger
	shutdown atomic.Bool
}

// NewServer builds a Server over the process-wide executor and tasker.
func NewServer(cfg Config, exec *executor.Executor, tsk *tasker.Tasker, logger *log.Logger) *Server {
	return &Server{
		cfg:    cfg,
		exec:   exec,
		tasker: tsk,
		pool:   newSearchPool(cfg.SearchPoolSize),
		logger: logger,
	}
}

// Shutdown raises the process-wide stopping flag (spec §4.H): new
// commands are rejected with ERR shutting_down, but in-flight commands
// on already-open connections are left to complete.
func (s *Server) Shutdown() { s.shutdown.Store(true) }

// ListenAndServe accepts connections on cfg.Inet until the listener
// errors or is closed.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Inet)
	if err != nil {
		return fmt.Errorf("channel: listen %s: %w", s.cfg.Inet, err)
	}
	defer ln.Close()
	s.logf("sonic listening on %s", s.cfg.Inet)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return fmt.Errorf("channel: accept: %w", err)
		}
		go s.handle(conn)
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// session is the per-connection state: one goroutine reads and
// processes commands synchronously; asynchronous search replies are
// written back by pool worker goroutines, so all writes go through
// writeMu.
type session struct {
	conn    net.Conn
	lr      *protocol.LineReader
	bw      *bufio.Writer
	writeMu sync.Mutex

	state   State
	cfg     Config
	exec    *executor.Executor
	tasker  *tasker.Tasker
	pool    *searchPool
	server  *Server
	markers markerSource

	cancelled atomic.Bool
}

func (s *Server) handle(conn net.Conn) {
	telemetry.ClientConnected()
	defer telemetry.ClientDisconnected()

	sess := &session{
		conn:   conn,
		lr:     protocol.NewLineReader(conn, s.cfg.BufferSize),
		bw:     bufio.NewWriter(conn),
		state:  StateUninitialized,
		cfg:    s.cfg,
		exec:   s.exec,
		tasker: s.tasker,
		pool:   s.pool,
		server: s,
	}
	defer func() {
		sess.cancelled.Store(true)
		conn.Close()
	}()

	if err := sess.writeLine(protocol.Banner()); err != nil {
		return
	}
	sess.loop()
}

func (sess *session) writeLine(line string) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if _, err := sess.bw.WriteString(line); err != nil {
		return err
	}
	if err := sess.bw.WriteByte('\n'); err != nil {
		return err
	}
	return sess.bw.Flush()
}

func (sess *session) loop() {
	for {
		if sess.cfg.TCPTimeout > 0 {
			_ = sess.conn.SetReadDeadline(time.Now().Add(sess.cfg.TCPTimeout))
		}
		line, err := sess.lr.ReadLine()
		if err != nil {
			if errors.Is(err, protocol.ErrBufferLineTooLong) {
				_ = sess.writeLine(protocol.Ended("buffer_line_too_long"))
			}
			return
		}

		cmd, err := protocol.ParseLine(line)
		if err != nil {
			w := sonicerr.Map(err)
			_ = sess.writeLine(protocol.Err(string(w.Code), w.Hint))
			continue
		}

		if sess.server.shutdown.Load() && cmd.Name != "QUIT" {
			_ = sess.writeLine(protocol.Err(string(sonicerr.CodeShuttingDown), ""))
			continue
		}

		telemetry.CommandProcessed(cmd.Name)

		if !commandAllowed(sess.state, cmd.Name) {
			_ = sess.writeLine(protocol.Err(string(sonicerr.CodeNotRecognized), ""))
			continue
		}

		if !sess.dispatch(cmd) {
			return
		}
	}
}

// dispatch processes one already-mode-validated command, returning
// false if the connection must now close.
func (sess *session) dispatch(cmd protocol.Command) bool {
	switch cmd.Name {
	case "START":
		return sess.handleStart(cmd)
	case "PING":
		_ = sess.writeLine(protocol.Pong())
	case "HELP":
		_ = sess.writeLine(helpText(sess.state))
	case "QUIT":
		_ = sess.writeLine(protocol.Ended("quit"))
		return false
	case "QUERY", "SUGGEST", "LIST":
		sess.handleAsyncSearch(cmd)
	case "PUSH", "POP", "COUNT", "FLUSHC", "FLUSHB", "FLUSHO":
		sess.handleIngest(cmd)
	case "TRIGGER", "INFO":
		sess.handleControl(cmd)
	default:
		_ = sess.writeLine(protocol.Err(string(sonicerr.CodeNotRecognized), ""))
	}
	return true
}

func (sess *session) handleStart(cmd protocol.Command) bool {
	if len(cmd.Args) < 1 {
		_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), "START <mode> [password]"))
		return true
	}
	mode, ok := parseMode(cmd.Args[0])
	if !ok {
		_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), "START <mode> [password]"))
		return true
	}
	password := ""
	if len(cmd.Args) > 1 {
		password = cmd.Args[1]
	}
	if sess.cfg.AuthPassword != "" && password != sess.cfg.AuthPassword {
		_ = sess.writeLine(protocol.Ended("authentication_failed"))
		return false
	}
	sess.state = mode
	_ = sess.writeLine(protocol.Started(cmd.Args[0], sess.cfg.BufferSize))
	return true
}

func helpText(state State) string {
	switch state {
	case StateSearch:
		return "OK commands(QUERY, SUGGEST, LIST, PING, QUIT)"
	case StateIngest:
		return "OK commands(PUSH, POP, COUNT, FLUSHC, FLUSHB, FLUSHO, PING, QUIT)"
	case StateControl:
		return "OK commands(TRIGGER, INFO, PING, QUIT)"
	default:
		return "OK commands(START, PING, QUIT)"
	}
}

// handleAsyncSearch allocates a marker, replies PENDING immediately,
// and posts the actual work to the shared search pool (spec §4.H).
func (sess *session) handleAsyncSearch(cmd protocol.Command) {
	marker := sess.markers.nextMarker()

	run, key, err := sess.buildSearchJob(cmd)
	if err != nil {
		w := sonicerr.Map(err)
		_ = sess.writeLine(protocol.Err(string(w.Code), w.Hint))
		return
	}

	kind := cmd.Name
	_ = sess.writeLine(protocol.Pending(marker))
	sess.pool.dispatch(key, searchJob{
		Run: run,
		Reply: func(words []string, err error) {
			if sess.cancelled.Load() {
				return // spec §5: dropped connections discard pending replies
			}
			if err != nil {
				w := sonicerr.Map(err)
				_ = sess.writeLine(protocol.Err(string(w.Code), w.Hint))
				return
			}
			switch kind {
			case "QUERY":
				_ = sess.writeLine(protocol.EventQuery(marker, words))
			case "SUGGEST":
				_ = sess.writeLine(protocol.EventSuggest(marker, words))
			case "LIST":
				_ = sess.writeLine(protocol.EventList(marker, words))
			}
		},
	})
}

func (sess *session) buildSearchJob(cmd protocol.Command) (run func() ([]string, error), dispatchKey string, err error) {
	limit := -1
	if cmd.Limit != nil {
		limit = *cmd.Limit
	}
	offset := 0
	if cmd.Offset != nil {
		offset = *cmd.Offset
	}

	switch cmd.Name {
	case "QUERY":
		if len(cmd.Args) != 3 {
			return nil, "", sonicerr.Wire(sonicerr.CodeInvalidFormat, `QUERY <collection> <bucket> "<terms>"`)
		}
		col, buc, terms := cmd.Args[0], cmd.Args[1], cmd.Args[2]
		lang, err := parseLang(cmd.Lang)
		if err != nil {
			return nil, "", err
		}
		return func() ([]string, error) {
			return sess.exec.Query(col, buc, terms, limit, offset, lang)
		}, col + "/" + buc, nil

	case "SUGGEST":
		if len(cmd.Args) != 3 {
			return nil, "", sonicerr.Wire(sonicerr.CodeInvalidFormat, `SUGGEST <collection> <bucket> "<word>"`)
		}
		col, buc, word := cmd.Args[0], cmd.Args[1], cmd.Args[2]
		return func() ([]string, error) {
			return sess.exec.Suggest(col, buc, word, limit)
		}, col + "/" + buc, nil

	case "LIST":
		if len(cmd.Args) != 2 {
			return nil, "", sonicerr.Wire(sonicerr.CodeInvalidFormat, "LIST <collection> <bucket>")
		}
		col, buc := cmd.Args[0], cmd.Args[1]
		return func() ([]string, error) {
			return sess.exec.List(col, buc, limit, offset)
		}, col + "/" + buc, nil
	}
	return nil, "", sonicerr.Wire(sonicerr.CodeNotRecognized, "")
}

func parseLang(raw *string) (lexer.Locale, error) {
	if raw == nil {
		return lexer.LocaleAutodetect, nil
	}
	loc, ok := lexer.ParseLocale(*raw)
	if !ok {
		return "", sonicerr.Wire(sonicerr.CodeInvalidMeta, "LANG")
	}
	return loc, nil
}

// handleIngest runs a PUSH/POP/COUNT/FLUSH* command synchronously and
// serializes its reply (spec §4.H, "strictly serialized").
func (sess *session) handleIngest(cmd protocol.Command) {
	switch cmd.Name {
	case "PUSH":
		sess.handlePush(cmd)
	case "POP":
		sess.handlePop(cmd)
	case "COUNT":
		sess.handleCount(cmd)
	case "FLUSHC":
		sess.handleFlushC(cmd)
	case "FLUSHB":
		sess.handleFlushB(cmd)
	case "FLUSHO":
		sess.handleFlushO(cmd)
	}
}

func (sess *session) handlePush(cmd protocol.Command) {
	if len(cmd.Args) != 4 {
		_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), `PUSH <collection> <bucket> <object> "<text>"`))
		return
	}
	lang, err := parseLang(cmd.Lang)
	if err != nil {
		_ = sess.replyErr(err)
		return
	}
	n, err := sess.exec.Push(cmd.Args[0], cmd.Args[1], cmd.Args[2], cmd.Args[3], lang)
	if err != nil {
		_ = sess.replyErr(err)
		return
	}
	_ = sess.writeLine(protocol.Result(n))
}

func (sess *session) handlePop(cmd protocol.Command) {
	if len(cmd.Args) != 4 {
		_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), `POP <collection> <bucket> <object> "<text>"`))
		return
	}
	n, err := sess.exec.Pop(cmd.Args[0], cmd.Args[1], cmd.Args[2], cmd.Args[3])
	if err != nil {
		_ = sess.replyErr(err)
		return
	}
	_ = sess.writeLine(protocol.Result(n))
}

func (sess *session) handleCount(cmd protocol.Command) {
	var n int
	var err error
	switch len(cmd.Args) {
	case 1:
		n, err = sess.exec.CountCollection(cmd.Args[0])
	case 2:
		n, err = sess.exec.CountBucket(cmd.Args[0], cmd.Args[1])
	case 3:
		n, err = sess.exec.CountObject(cmd.Args[0], cmd.Args[1], cmd.Args[2])
	default:
		_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), "COUNT <collection> [<bucket> [<object>]?]?"))
		return
	}
	if err != nil {
		_ = sess.replyErr(err)
		return
	}
	_ = sess.writeLine(protocol.Result(n))
}

func (sess *session) handleFlushC(cmd protocol.Command) {
	if len(cmd.Args) != 1 {
		_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), "FLUSHC <collection>"))
		return
	}
	if err := sess.exec.FlushCollection(cmd.Args[0]); err != nil {
		_ = sess.replyErr(err)
		return
	}
	_ = sess.writeLine(protocol.OK())
}

func (sess *session) handleFlushB(cmd protocol.Command) {
	if len(cmd.Args) != 2 {
		_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), "FLUSHB <collection> <bucket>"))
		return
	}
	n, err := sess.exec.FlushBucket(cmd.Args[0], cmd.Args[1])
	if err != nil {
		_ = sess.replyErr(err)
		return
	}
	_ = sess.writeLine(protocol.Result(n))
}

func (sess *session) handleFlushO(cmd protocol.Command) {
	if len(cmd.Args) != 3 {
		_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), "FLUSHO <collection> <bucket> <object>"))
		return
	}
	n, err := sess.exec.FlushObject(cmd.Args[0], cmd.Args[1], cmd.Args[2])
	if err != nil {
		_ = sess.replyErr(err)
		return
	}
	_ = sess.writeLine(protocol.Result(n))
}

// handleControl runs TRIGGER/INFO synchronously.
func (sess *session) handleControl(cmd protocol.Command) {
	switch cmd.Name {
	case "TRIGGER":
		sess.handleTrigger(cmd)
	case "INFO":
		sess.handleInfo()
	}
}

func (sess *session) handleTrigger(cmd protocol.Command) {
	if len(cmd.Args) < 1 {
		_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), "TRIGGER <action> [<arg>]?"))
		return
	}
	switch cmd.Args[0] {
	case "consolidate":
		if _, err := sess.tasker.Consolidate(); err != nil {
			_ = sess.replyErr(err)
			return
		}
		_ = sess.writeLine(protocol.OK())
	case "backup":
		if len(cmd.Args) != 2 {
			_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), "TRIGGER backup <path>"))
			return
		}
		if err := sess.exec.Backup(cmd.Args[1]); err != nil {
			_ = sess.replyErr(err)
			return
		}
		_ = sess.writeLine(protocol.OK())
	case "restore":
		if len(cmd.Args) != 2 {
			_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), "TRIGGER restore <path>"))
			return
		}
		if err := sess.exec.Restore(cmd.Args[1]); err != nil {
			_ = sess.replyErr(err)
			return
		}
		_ = sess.writeLine(protocol.OK())
	default:
		_ = sess.writeLine(protocol.Err(string(sonicerr.CodeInvalidFormat), "TRIGGER <action> [<arg>]?"))
	}
}

func (sess *session) handleInfo() {
	stats := map[string]string{
		"uptime":             strconv.FormatInt(int64(telemetry.Uptime().Seconds()), 10),
		"tasker_tick":        sess.tasker.String(),
		"clients_connected":  strconv.Itoa(telemetry.ClientsConnected()),
		"commands_total":     strconv.Itoa(telemetry.CommandsTotalCount()),
		"kv_open_handles":    strconv.Itoa(telemetry.KVOpenHandlesCount()),
		"fst_open_handles":   strconv.Itoa(telemetry.FSTOpenHandlesCount()),
		"search_pool_queued": strconv.Itoa(telemetry.SearchPoolQueuedCount()),
	}
	_ = sess.writeLine(protocol.Info(stats))
}

func (sess *session) replyErr(err error) error {
	w := sonicerr.Map(err)
	return sess.writeLine(protocol.Err(string(w.Code), w.Hint))
}
