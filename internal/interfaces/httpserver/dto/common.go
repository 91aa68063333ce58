// Package dto provides data transfer objects for HTTP requests/responses
package dto

// Response is a generic API response wrapper
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo holds error information
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK wraps data in a successful response envelope.
func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// Error wraps a code and message in a failed response envelope.
func Error(code, message string) Response {
	return Response{Success: false, Error: &ErrorInfo{Code: code, Message: message}}
}
