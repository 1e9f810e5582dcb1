// Package observability exports application metrics through OpenTelemetry
// and a Prometheus scrape endpoint.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const (
	attrMethod = "method"
	attrPath   = "path"
	attrStatus = "status"
	attrTask   = "task"
	attrState  = "state"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, normalizePath(path))
}

// statusAttr groups codes into 2xx, 4xx and 5xx.
func statusAttr(code int) attribute.KeyValue {
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func taskAttr(task string) attribute.KeyValue {
	return attribute.String(attrTask, task)
}

func stateAttr(state string) attribute.KeyValue {
	return attribute.String(attrState, state)
}

// normalizePath replaces the chat ID in /v1/chats/{chatId}/... so each chat
// does not become its own series.
func normalizePath(path string) string {
	const prefix = "/v1/chats/"
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || rest == "" {
		return path
	}
	if _, tail, found := strings.Cut(rest, "/"); found {
		return prefix + "{chatId}/" + tail
	}
	return prefix + "{chatId}"
}
