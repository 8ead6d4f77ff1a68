// Package metrics emits CloudWatch Embedded Metric Format (EMF) documents.
// Each Flush writes one JSON line to stdout; in Lambda, CloudWatch Logs
// extracts the metrics from it without any API calls.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Namespace is the CloudWatch namespace for every metric this service emits.
const Namespace = "BrandStudio"

// Standard CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

// emfDirective is the _aws metadata block required by EMF.
type emfDirective struct {
	Timestamp         int64      `json:"Timestamp"`
	CloudWatchMetrics []cwMetric `json:"CloudWatchMetrics"`
}

type cwMetric struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Recorder accumulates dimensions, metrics, and properties for a single EMF flush.
// It is NOT safe for concurrent use from multiple goroutines; create one per operation.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	metrics    map[string]metricDef
	values     map[string]interface{}
	properties map[string]interface{}
}

var (
	// functionName is cached from AWS_LAMBDA_FUNCTION_NAME on first use.
	functionName string
	initOnce     sync.Once

	outMu sync.Mutex
	out   io.Writer = os.Stdout
)

func initFunctionName() {
	functionName = os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
}

// SetOutput redirects flushed documents. It returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	prev := out
	out = w
	return prev
}

// New creates a Recorder. The FunctionName dimension is added automatically
// when running in Lambda.
func New(namespace string) *Recorder {
	initOnce.Do(initFunctionName)
	r := &Recorder{
		namespace:  namespace,
		dimensions: make(map[string]string),
		metrics:    make(map[string]metricDef),
		values:     make(map[string]interface{}),
		properties: make(map[string]interface{}),
	}
	if functionName != "" {
		r.dimensions["FunctionName"] = functionName
	}
	return r
}

// Dimension adds a dimension key-value pair.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named metric value with a CloudWatch unit.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.metrics[name] = metricDef{Name: name, Unit: unit}
	r.values[name] = value
	return r
}

// Count records a count metric with value 1.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Property adds a non-metric field. Properties are searchable in Logs
// Insights but do not create CloudWatch metrics.
func (r *Recorder) Property(key string, value interface{}) *Recorder {
	r.properties[key] = value
	return r
}

// Flush writes the EMF document as a single JSON line. A recorder with no
// metrics writes nothing. The Recorder should not be reused afterwards.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return
	}

	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	metricDefs := make([]metricDef, 0, len(names))
	for _, name := range names {
		metricDefs = append(metricDefs, r.metrics[name])
	}

	dimKeys := make([]string, 0, len(r.dimensions))
	for k := range r.dimensions {
		dimKeys = append(dimKeys, k)
	}
	sort.Strings(dimKeys)

	doc := make(map[string]interface{}, 1+len(r.dimensions)+len(r.values)+len(r.properties))
	doc["_aws"] = emfDirective{
		Timestamp: time.Now().UnixMilli(),
		CloudWatchMetrics: []cwMetric{{
			Namespace:  r.namespace,
			Dimensions: [][]string{dimKeys},
			Metrics:    metricDefs,
		}},
	}
	for k, v := range r.properties {
		doc[k] = v
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	for k, v := range r.values {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: failed to marshal metrics: %v\n", err)
		return
	}

	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintln(out, string(data))
}
