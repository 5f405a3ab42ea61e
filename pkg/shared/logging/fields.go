// Package logging provides a small structured-fields builder used across
// every domain-logic package (schema, hypergraph, worldmodel, research,
// matching, reasoning) on top of sirupsen/logrus.
package logging

import "time"

// Fields is a chainable builder for logrus.Fields-compatible structured
// logging fields. Each setter returns the same map so calls compose:
// logging.NewFields().Component("hypergraph").Operation("write_hyperedge").
type Fields map[string]interface{}

// NewFields starts an empty field set.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(resourceType, resourceName string) Fields {
	f["resource_type"] = resourceType
	if resourceName != "" {
		f["resource_name"] = resourceName
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	if id != "" {
		f["request_id"] = id
	}
	return f
}

func (f Fields) TraceID(id string) Fields {
	if id != "" {
		f["trace_id"] = id
	}
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// ToLogrus adapts Fields to logrus.Fields without importing logrus here,
// keeping this package dependency-free; callers do logrus.WithFields(
// logging.Fields(...).ToLogrus()).
func (f Fields) ToLogrus() map[string]interface{} {
	out := make(map[string]interface{}, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DatabaseFields is a shortcut for internal/database and pkg/hypergraph /
// pkg/worldmodel repository logging.
func DatabaseFields(operation, table string) Fields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields is a shortcut for HTTP access logging.
func HTTPFields(method, url string, statusCode int) Fields {
	return NewFields().Component("http").Method(method).URL(url).StatusCode(statusCode)
}

// WorkflowFields is a shortcut for pkg/research job/stage logging.
func WorkflowFields(operation, jobID string) Fields {
	return NewFields().Component("workflow").Operation(operation).Resource("workflow", jobID)
}

// HyperedgeFields is a shortcut for pkg/hypergraph write/read/projection
// logging, carrying the (edge_type, key) identity and optional version.
func HyperedgeFields(operation, edgeType, key string, version int) Fields {
	f := NewFields().Component("hyperedge").Operation(operation).Resource(edgeType, key)
	if version > 0 {
		f.Version(intToVersionString(version))
	}
	return f
}

func intToVersionString(v int) string {
	digits := []byte{}
	if v == 0 {
		return "0"
	}
	n := v
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return "v" + string(digits)
}

// AIFields is a shortcut for pkg/research LLM-backed client logging.
func AIFields(operation, model string) Fields {
	return NewFields().Component("ai").Operation(operation).Custom("model", model)
}

// MetricsFields is a shortcut for ad-hoc metric-adjacent log lines.
func MetricsFields(operation, metricName string, value float64) Fields {
	return NewFields().Component("metrics").Operation(operation).Custom("metric_name", metricName).Custom("value", value)
}

// SecurityFields is a shortcut for authentication/authorization logging,
// e.g. the Reasoning Block Registry's domain-safe exposure gate.
func SecurityFields(operation, subject string) Fields {
	return NewFields().Component("security").Operation(operation).Custom("subject", subject)
}

// PerformanceFields is a shortcut for timed-operation logging.
func PerformanceFields(operation string, d time.Duration, success bool) Fields {
	return NewFields().Component("performance").Operation(operation).Duration(d).Custom("success", success)
}
