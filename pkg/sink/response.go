package sink

import (
	"sort"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
)

// Response maps the batch index of every failed message to its error. A
// later error for an index replaces the earlier one.
type Response struct {
	errs map[int64]*errors.ErrorInfo
}

// NewResponse creates an empty response.
func NewResponse() *Response {
	return &Response{errs: make(map[int64]*errors.ErrorInfo)}
}

// Add records info for index, replacing any previous error.
func (r *Response) Add(index int64, info *errors.ErrorInfo) {
	r.errs[index] = info
}

// Get returns the error of index.
func (r *Response) Get(index int64) (*errors.ErrorInfo, bool) {
	info, ok := r.errs[index]
	return info, ok
}

// Has reports whether index failed.
func (r *Response) Has(index int64) bool {
	_, ok := r.errs[index]
	return ok
}

// HasErrors reports whether any message failed.
func (r *Response) HasErrors() bool {
	return len(r.errs) > 0
}

// Len returns the number of failed messages.
func (r *Response) Len() int {
	return len(r.errs)
}

// Errors returns a copy of the index to error map.
func (r *Response) Errors() map[int64]*errors.ErrorInfo {
	out := make(map[int64]*errors.ErrorInfo, len(r.errs))
	for k, v := range r.errs {
		out[k] = v
	}
	return out
}

// Indices returns the failed indices in ascending order.
func (r *Response) Indices() []int64 {
	out := make([]int64, 0, len(r.errs))
	for k := range r.errs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ErrorTypes returns one error type per failed message.
func (r *Response) ErrorTypes() []string {
	out := make([]string, 0, len(r.errs))
	for _, idx := range r.Indices() {
		out = append(out, string(r.errs[idx].Type))
	}
	return out
}
