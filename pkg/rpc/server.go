package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/anonymizer"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/audit"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/logger"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/models"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/eventlog"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/fileindex"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/policy"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeDenied         = -32001
)

// stdioSubject identifies the local stdio client to the permission checker.
const stdioSubject = "stdio"

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server speaks line-delimited JSON-RPC 2.0 over a reader/writer pair,
// normally stdin/stdout. Every result is produced by the same services
// the HTTP API uses, so records cross this boundary redacted too.
type Server struct {
	events  *eventlog.Service
	files   *fileindex.Service
	engine  *anonymizer.Engine
	checker policy.Checker
	auditor *audit.Service

	in  io.Reader
	out io.Writer
}

func NewServer(events *eventlog.Service, files *fileindex.Service, engine *anonymizer.Engine, checker policy.Checker, auditor *audit.Service, in io.Reader, out io.Writer) *Server {
	return &Server{
		events:  events,
		files:   files,
		engine:  engine,
		checker: checker,
		auditor: auditor,
		in:      in,
		out:     out,
	}
}

// Run processes requests until the input stream ends or ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	encoder := json.NewEncoder(s.out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			encoder.Encode(Response{JSONRPC: "2.0", Error: &Error{Code: codeParseError, Message: "parse error"}})
			continue
		}
		if req.Method == "" {
			encoder.Encode(Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: codeInvalidRequest, Message: "missing method"}})
			continue
		}

		resp := s.dispatch(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	if err := s.checker.Authorize(ctx, stdioSubject, req.Method); err != nil {
		logger.Log.WithField("method", req.Method).Warn("stdio request denied")
		return errorResponse(req.ID, codeDenied, err.Error())
	}

	switch req.Method {
	case "eventlog.query":
		var filter models.EventLogFilter
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &filter); err != nil {
				return errorResponse(req.ID, codeInvalidParams, "invalid event log filter")
			}
		}
		resp, err := s.events.Query(ctx, filter)
		if err != nil {
			return errorResponse(req.ID, codeServerError, err.Error())
		}
		s.auditor.Record(ctx, stdioSubject, req.Method, paramsMap(req.Params), resp.Count)
		return Response{JSONRPC: "2.0", ID: req.ID, Result: resp}

	case "fileindex.search":
		var query models.FileSearchQuery
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &query); err != nil {
				return errorResponse(req.ID, codeInvalidParams, "invalid file search query")
			}
		}
		resp, err := s.files.Search(ctx, query)
		if err != nil {
			return errorResponse(req.ID, codeServerError, err.Error())
		}
		s.auditor.Record(ctx, stdioSubject, req.Method, paramsMap(req.Params), resp.Count)
		return Response{JSONRPC: "2.0", ID: req.ID, Result: resp}

	case "mapping.stats":
		return Response{JSONRPC: "2.0", ID: req.ID, Result: s.engine.Stats()}

	default:
		return errorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func errorResponse(id json.RawMessage, code int, message string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

func paramsMap(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil && !errors.Is(err, io.EOF) {
		return nil
	}
	return params
}
