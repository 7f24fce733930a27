// Package web defines common components for a web application.
package web

// Response holds the common response type for all APIs.
type Response struct {
	Success bool   `json:"success"`
	Data    *Data  `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Data is the payload of a successful response.
type Data struct {
	Type       string `json:"type"`
	Count      int    `json:"count"`
	Attributes any    `json:"attributes"`
}

// Error wraps a given err into json frinedly failed response.
func Error(err error) Response {
	return Response{Error: err.Error()}
}

// Success wraps attributes of the given type into a successful response.
// count is the number of records in attributes.
func Success(typ string, count int, attributes any) Response {
	return Response{
		Success: true,
		Data: &Data{
			Type:       typ,
			Count:      count,
			Attributes: attributes,
		},
	}
}
