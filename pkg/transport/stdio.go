package transport

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/richard-senior/poolleague/internal/logger"
	"github.com/richard-senior/poolleague/pkg/protocol"
)

// StdioTransport implements communication over standard input/output
type StdioTransport struct {
	reader *bufio.Reader
	writer *bufio.Writer
}

// NewStdioTransport creates a new transport that uses stdin/stdout
func NewStdioTransport() *StdioTransport {
	return NewStreamTransport(os.Stdin, os.Stdout)
}

// NewStreamTransport reads requests from r and writes responses to w
func NewStreamTransport(r io.Reader, w io.Writer) *StdioTransport {
	return &StdioTransport{
		reader: bufio.NewReader(r),
		writer: bufio.NewWriter(w),
	}
}

// readObject reads one complete JSON object, tracking brace depth outside of
// string literals so that messages need not be newline delimited
func (t *StdioTransport) readObject() ([]byte, error) {
	var data []byte
	var depth int
	var inString, escapeNext bool

	for {
		b, err := t.reader.ReadByte()
		if err != nil {
			return nil, err
		}
		if depth == 0 && b != '{' {
			// whitespace or stray bytes between messages
			continue
		}
		data = append(data, b)

		if inString {
			switch {
			case escapeNext:
				escapeNext = false
			case b == '\\':
				escapeNext = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return data, nil
			}
		}
	}
}

// ReadRequest reads a JSON-RPC request from the input stream
func (t *StdioTransport) ReadRequest() (*protocol.JsonRpcRequest, error) {
	logger.Debug("Waiting for request on stdin...")
	data, err := t.readObject()
	if err != nil {
		if err == io.EOF {
			logger.Info("Received EOF on stdin, client disconnected")
		} else {
			logger.Error("Error reading from stdin:", err)
		}
		return nil, err
	}

	raw := strings.TrimSpace(string(data))
	logger.Debug("Received raw request:", raw)

	request, err := protocol.ParseJsonRpcRequest([]byte(raw))
	if err != nil {
		logger.Error("Failed to parse JSON-RPC request:", err)
		return nil, &protocol.JsonRpcError{Code: protocol.ErrParse, Message: err.Error()}
	}
	return request, nil
}

// WriteResponse writes a JSON-RPC response, one per line
func (t *StdioTransport) WriteResponse(response *protocol.JsonRpcResponse) error {
	responseBytes, err := json.Marshal(response)
	if err != nil {
		logger.Error("Failed to marshal response:", err)
		return err
	}
	responseBytes = append(responseBytes, '\n')

	logger.Debug("Sending response:", string(responseBytes))
	if _, err := t.writer.Write(responseBytes); err != nil {
		logger.Error("Failed to write response:", err)
		return err
	}
	if err := t.writer.Flush(); err != nil {
		logger.Error("Failed to flush response:", err)
		return err
	}
	return nil
}
