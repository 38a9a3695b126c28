package server

import "github.com/eigerco/kvrange/pkg/scan"

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Response is the envelope of every endpoint except scans. Byte values are
// base64 in JSON.
type Response struct {
	Status Status `json:"status,omitempty"`
	ID     string `json:"id,omitempty"`
	Value  []byte `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ScanResponse carries the entries of one range scan.
type ScanResponse struct {
	Status  Status       `json:"status"`
	Entries []scan.Entry `json:"entries"`
	Count   int          `json:"count"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewSuccessResponse() Response {
	return Response{Status: StatusSuccess}
}

func NewValueResponse(value []byte) Response {
	return Response{Status: StatusSuccess, Value: value}
}

func NewIDResponse(id string) Response {
	return Response{Status: StatusSuccess, ID: id}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}

func NewScanResponse(entries []scan.Entry) ScanResponse {
	if entries == nil {
		entries = []scan.Entry{}
	}
	return ScanResponse{Status: StatusSuccess, Entries: entries, Count: len(entries)}
}
