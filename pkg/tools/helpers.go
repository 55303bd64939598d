package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
)

// InputParser is a generic function to parse request arguments into a strongly typed struct
func InputParser[T any](req mcp.CallToolRequest) (T, error) {
	var input T

	// Round trip through JSON so nested objects decode into typed fields.
	inputJSON, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return input, err
	}
	if err := json.Unmarshal(inputJSON, &input); err != nil {
		return input, err
	}
	return input, nil
}

// WithParsedInput is a higher-order function that handles request parsing,
// error conversion and result encoding.
func WithParsedInput[T any](
	logger *slog.Logger,
	handlerName string,
	handler func(ctx context.Context, input T, logger *slog.Logger) (any, error),
) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := logger.With("tool", handlerName)

		input, err := InputParser[T](req)
		if err != nil {
			logger.Debug("failed to parse input", "error", err)
			return parseError(handlerName, err), nil
		}

		result, err := handler(ctx, input, logger)
		if err != nil {
			logger.Debug("handler error", "error", err)
			return errorResult(err), nil
		}

		return jsonResult(logger, result), nil
	}
}

func jsonResult(logger *slog.Logger, v any) *mcp.CallToolResult {
	resultBytes, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to marshal result", "error", err)
		return ErrorResponse("Failed to generate result")
	}
	return mcp.NewToolResultText(string(resultBytes))
}
