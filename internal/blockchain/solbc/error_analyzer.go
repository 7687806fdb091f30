package solbc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// BroadcastError keeps the node's message and any simulation logs verbatim.
type BroadcastError struct {
	Code    int
	Message string
	Logs    []string
	Err     error
}

func (e *BroadcastError) Error() string {
	if len(e.Logs) == 0 {
		return fmt.Sprintf("broadcast failed: %s", e.Message)
	}
	return fmt.Sprintf("broadcast failed: %s\n%s", e.Message, strings.Join(e.Logs, "\n"))
}

func (e *BroadcastError) Unwrap() error { return e.Err }

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// ErrorAnalyzer provides methods to analyze Solana transaction errors
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// Analyze turns a send error into a BroadcastError, extracting simulation
// logs from the RPC error data when present.
func (ea *ErrorAnalyzer) Analyze(err error) *BroadcastError {
	if err == nil {
		return nil
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return &BroadcastError{Message: err.Error(), Err: err}
	}

	out := &BroadcastError{
		Code:    rpcErr.Code,
		Message: rpcErr.Message,
		Err:     err,
	}

	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return out
	}

	if logs, ok := dataMap["logs"].([]interface{}); ok {
		for _, entry := range logs {
			line, ok := entry.(string)
			if !ok {
				continue
			}
			out.Logs = append(out.Logs, line)

			if strings.Contains(line, "AnchorError occurred") {
				anchorErr := parseAnchorErrorLog(line)
				ea.logger.Warn("Anchor error detected",
					zap.Int("code", anchorErr.Code),
					zap.String("name", anchorErr.Name),
					zap.String("message", anchorErr.Msg))
			}
		}
	}

	return out
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported."
func parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if _, rest, ok := strings.Cut(logStr, "Error Number:"); ok {
		num, _, _ := strings.Cut(rest, ".")
		fmt.Sscanf(strings.TrimSpace(num), "%d", &result.Code)
	}
	if _, rest, ok := strings.Cut(logStr, "Error Code:"); ok {
		name, _, _ := strings.Cut(rest, ".")
		result.Name = strings.TrimSpace(name)
	}
	if _, rest, ok := strings.Cut(logStr, "Error Message:"); ok {
		msg, _, _ := strings.Cut(rest, ".")
		result.Msg = strings.TrimSpace(msg)
	}

	return result
}
