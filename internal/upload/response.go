package upload

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidResponse is returned when the upload endpoint does not answer with JSON.
var ErrInvalidResponse = errors.New("upload response is not valid JSON")

// Response is what the client cares about in the endpoint's reply.
type Response struct {
	Status int
	// Error is the server's rejection message, shown to the user verbatim.
	Error string
}

// Rejected reports whether the server refused the upload.
func (r Response) Rejected() bool {
	return r.Error != ""
}

// ParseResponse reads the "error" field of a JSON reply. Only a truthy value
// counts as a rejection; "", false, 0, null, [] and {} do not.
func ParseResponse(data []byte) (Response, error) {
	if !gjson.ValidBytes(data) {
		return Response{}, ErrInvalidResponse
	}
	result := gjson.GetBytes(data, "error")
	if !truthy(result) {
		return Response{}, nil
	}
	return Response{Error: result.String()}, nil
}

func truthy(result gjson.Result) bool {
	switch result.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return result.Num != 0
	case gjson.String:
		return result.Str != ""
	case gjson.JSON:
		if result.IsArray() {
			return len(result.Array()) > 0
		}
		return len(result.Map()) > 0
	default:
		return true
	}
}
