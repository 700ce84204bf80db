// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import "github.com/bassosimone/restworker/nbuf"

// Status codes used in responses.
const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405 // not emitted: unsupported methods get 501
	StatusRequestTimeout      = 408
	StatusInternalServerError = 500
	StatusNotImplemented      = 501
)

// StatusText returns the reason phrase of a status code.
//
// The 500 phrase is "Interval Server Error" because existing clients
// match on the exact wire text.
func StatusText(status int) string {
	switch status {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusNotFound:
		return "Not Found"
	case StatusMethodNotAllowed:
		return "Method Not Allowed"
	case StatusRequestTimeout:
		return "Request Timeout"
	case StatusInternalServerError:
		return "Interval Server Error"
	case StatusNotImplemented:
		return "Not Implemented"
	default:
		return "Status not defined"
	}
}

// normalizeStatus maps negative codes to 500 and zero to 200.
func normalizeStatus(status int) int {
	switch {
	case status < 0:
		return StatusInternalServerError
	case status == 0:
		return StatusOK
	default:
		return status
	}
}

// formatHeader replaces the content of hdr with the response header for
// status, declaring a body of bodyLen bytes.
func formatHeader(hdr *nbuf.Buffer, status int, bodyLen int) error {
	status = normalizeStatus(status)
	hdr.Clear()
	_, err := hdr.Printf(
		"HTTP/1.1 %d %s\r\n"+
			"Content-Type: application/json\r\n"+
			"Content-Length: %d\r\n"+
			"Connection: close\r\n"+
			"Access-Control-Allow-Origin: *\r\n"+
			"\r\n",
		status, StatusText(status), bodyLen,
	)
	return err
}
