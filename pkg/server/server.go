package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/richard-senior/poolleague/internal/logger"
	"github.com/richard-senior/poolleague/pkg/protocol"
	"github.com/richard-senior/poolleague/pkg/tools"
	"github.com/richard-senior/poolleague/pkg/transport"
)

const (
	serverName      = "poolleague"
	serverVersion   = "1.0.0"
	protocolVersion = "2024-11-05"
)

// Server represents an MCP server
type Server struct {
	transport transport.Transport
	handlers  map[string]HandlerFunc
	tools     []protocol.Tool
	toolFuncs map[string]HandlerFunc
	mu        sync.Mutex
}

// HandlerFunc is a function that handles an MCP request
type HandlerFunc func(params any) (any, error)

// New creates a server reading from t and registers every tool in the toolkit.
// t may be nil when requests only arrive through HandleRequest.
func New(t transport.Transport, toolkit *tools.LeagueToolkit) *Server {
	s := &Server{
		transport: t,
		handlers:  make(map[string]HandlerFunc),
		tools:     []protocol.Tool{},
		toolFuncs: make(map[string]HandlerFunc),
	}
	if toolkit != nil {
		for _, d := range toolkit.Definitions() {
			s.RegisterTool(d.Tool, d.Handler)
		}
	}

	s.handlers[string(protocol.MethodInitialize)] = s.handleInitialize
	s.handlers[string(protocol.MethodInitialized)] = s.handleInitialized
	s.handlers[string(protocol.MethodPing)] = s.handlePing
	s.handlers[string(protocol.MethodToolsList)] = s.handleToolsList
	s.handlers[string(protocol.MethodToolsCall)] = s.handleToolsCall
	s.handlers[string(protocol.MethodShutdown)] = s.handleShutdown
	return s
}

// RegisterTool registers a tool with the server
func (s *Server) RegisterTool(tool protocol.Tool, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.toolFuncs[tool.Name]; !exists {
		s.tools = append(s.tools, tool)
	}
	s.toolFuncs[tool.Name] = handler
	logger.Info("Registered tool:", tool.Name)
}

// GetTools returns the list of registered tools
func (s *Server) GetTools() []protocol.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

func (s *Server) lookup(method string) HandlerFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers[method]
}

func (s *Server) toolHandler(name string) HandlerFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolFuncs[name]
}

// Start starts the server and processes requests until the input ends or
// the process is signalled
func (s *Server) Start() error {
	logger.Info("Starting MCP server with", len(s.GetTools()), "tools")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.ProcessRequests()
	}()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("Received signal:", sig)
		return nil
	}
}

// ProcessRequests reads and answers requests until the transport is exhausted.
// A message that cannot be parsed is answered with a parse error and skipped.
func (s *Server) ProcessRequests() error {
	if s.transport == nil {
		return fmt.Errorf("server has no transport")
	}
	for {
		req, err := s.transport.ReadRequest()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("Input closed")
				return nil
			}
			var rpcErr *protocol.JsonRpcError
			if errors.As(err, &rpcErr) && rpcErr.Code == protocol.ErrParse {
				logger.Warn("Unparseable request:", rpcErr.Message)
				if err := s.transport.WriteResponse(protocol.NewJsonRpcErrorResponse(protocol.ErrParse, "Parse error: "+rpcErr.Message, nil, nil)); err != nil {
					return err
				}
				continue
			}
			return err
		}

		// nil means no response is required
		resp := s.HandleRequest(req)
		if resp == nil {
			continue
		}
		if err := s.transport.WriteResponse(resp); err != nil {
			return err
		}
	}
}

// HandleRequest dispatches one request and returns its response, or nil for
// notifications
func (s *Server) HandleRequest(req *protocol.JsonRpcRequest) *protocol.JsonRpcResponse {
	logger.Info(">> ", req.Method)
	logger.Debug("Full request:", req.String())

	if strings.HasPrefix(req.Method, "notifications/") || req.IsNotification() {
		if handler := s.lookup(req.Method); handler != nil {
			if _, err := handler(req.Params); err != nil {
				logger.Warn("Notification failed:", req.Method, err)
			}
		}
		logger.Debug("Received notification:", req.Method)
		return nil
	}

	var handler HandlerFunc
	var params any = req.Params

	if req.Method == string(protocol.MethodInvokeTool) {
		var invoke struct {
			Name       string         `json:"name"`
			Parameters map[string]any `json:"parameters"`
		}
		if err := json.Unmarshal(req.Params, &invoke); err != nil || invoke.Name == "" {
			return protocol.NewJsonRpcErrorResponse(protocol.ErrInvalidParams, "invoke_tool needs a tool name and parameters", nil, req.ID)
		}
		logger.Info("Tool invocation requested for:", invoke.Name)
		handler = s.toolHandler(invoke.Name)
		params = nonNil(invoke.Parameters)
	} else {
		handler = s.lookup(req.Method)
	}

	if handler == nil {
		return protocol.NewJsonRpcErrorResponse(protocol.ErrMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil, req.ID)
	}

	result, err := handler(params)
	if err != nil {
		code := protocol.ErrToolExecutionFailed
		if tools.IsArgumentError(err) {
			code = protocol.ErrInvalidParams
		}
		logger.Warn("Request failed:", req.Method, err)
		return protocol.NewJsonRpcErrorResponse(code, err.Error(), nil, req.ID)
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return protocol.NewJsonRpcErrorResponse(protocol.ErrInternal, "Failed to marshal result: "+err.Error(), nil, req.ID)
	}
	resp := &protocol.JsonRpcResponse{
		JsonRPC: protocol.JsonRpcVersion,
		Result:  resultBytes,
		ID:      req.ID,
	}
	logger.Debug("Full response:", resp.String())
	return resp
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// rawParams decodes handler params that arrive as raw JSON
func rawParams(params any, target any) error {
	raw, ok := params.(json.RawMessage)
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &tools.ArgumentError{Message: "invalid parameters: " + err.Error()}
	}
	return nil
}

func (s *Server) handleInitialize(params any) (any, error) {
	var p struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if err := rawParams(params, &p); err != nil {
		return nil, err
	}
	version := protocolVersion
	if p.ProtocolVersion != "" {
		version = p.ProtocolVersion
	}
	logger.Info("Handling initialize request with", len(s.GetTools()), "tools, protocol", version)

	return map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]string{
			"name":    serverName,
			"version": serverVersion,
		},
	}, nil
}

// 'initialized' does not require a response
func (s *Server) handleInitialized(params any) (any, error) {
	logger.Info("Client initialized")
	return nil, nil
}

func (s *Server) handlePing(params any) (any, error) {
	return map[string]any{}, nil
}

func (s *Server) handleShutdown(params any) (any, error) {
	logger.Info("Shutdown requested")
	return map[string]any{}, nil
}

func (s *Server) handleToolsList(params any) (any, error) {
	return protocol.ToolsResponse{Tools: s.GetTools()}, nil
}

// handleToolsCall runs a tool and wraps its output as MCP text content
func (s *Server) handleToolsCall(params any) (any, error) {
	var call struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := rawParams(params, &call); err != nil {
		return nil, err
	}
	if call.Name == "" {
		return nil, &tools.ArgumentError{Message: "tools/call needs a tool name"}
	}
	logger.Info("Tool call requested for:", call.Name)

	handler := s.toolHandler(call.Name)
	if handler == nil {
		return nil, &tools.ArgumentError{Message: "tool not found: " + call.Name}
	}
	result, err := handler(nonNil(call.Arguments))
	if err != nil {
		return nil, err
	}
	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s result: %w", call.Name, err)
	}
	return protocol.TextResult(string(text), false), nil
}
