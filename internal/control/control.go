// Copyright 2025 The Lumaframe Authors
// SPDX-License-Identifier: MIT

// Package control implements Component G: a Unix domain socket JSON
// control channel translating one-shot client commands into viewer/sleep
// mutations (spec.md §4.7).
package control

import (
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/lumaframe/frame/internal/errs"
	"github.com/lumaframe/frame/internal/logging"
)

// Scheduler is the subset of internal/sleep.Scheduler the control
// channel drives.
type Scheduler interface {
	SetState(asleep bool)
	ToggleState()
}

// request is the on-wire command shape (spec.md §4.7's exact names).
type request struct {
	Command string `json:"command"`
	State   string `json:"state,omitempty"`
}

type response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Server listens on a Unix socket and serves one command per connection.
type Server struct {
	path     string
	listener net.Listener
	sched    Scheduler
	logger   *slog.Logger
}

// Listen creates the socket's parent directories and binds it (spec.md
// §4.7: "Socket path parent directories are created at startup").
// A bind/mkdir failure returns a ControlRefused error; the caller
// should treat this as non-fatal and continue running without the
// control channel.
func Listen(path string, sched Scheduler) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.New(errs.ControlRefused, "", err)
	}
	_ = os.Remove(path) // stale socket from an unclean prior shutdown

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errs.New(errs.ControlRefused, "", err)
	}
	return &Server{path: path, listener: ln, sched: sched, logger: logging.Logger()}, nil
}

// Serve accepts connections until the listener is closed, handling each
// one as a single request/reply/close exchange.
func (s *Server) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

// Close removes the socket file (spec.md §4.7: "removed on clean
// shutdown").
func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	var req request
	dec := jsoniter.NewDecoder(conn)
	if err := dec.Decode(&req); err != nil {
		s.reply(conn, response{OK: false, Error: "invalid json: " + err.Error()})
		return
	}

	if err := s.dispatch(req); err != nil {
		s.reply(conn, response{OK: false, Error: err.Error()})
		return
	}
	s.reply(conn, response{OK: true})
}

func (s *Server) dispatch(req request) error {
	switch req.Command {
	case "set-state":
		switch req.State {
		case "awake":
			s.sched.SetState(false)
		case "asleep":
			s.sched.SetState(true)
		default:
			return errors.New("unknown state " + req.State)
		}
		return nil
	case "ToggleState":
		s.sched.ToggleState()
		return nil
	default:
		return errors.New("unknown command " + req.Command)
	}
}

func (s *Server) reply(conn net.Conn, resp response) {
	enc := jsoniter.NewEncoder(conn)
	if err := enc.Encode(resp); err != nil {
		s.logger.Warn("control: failed to write reply", "error", err)
	}
}

