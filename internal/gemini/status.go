package gemini

import "fmt"

// Status is a two-digit Gemini response status code.
type Status int

const (
	StatusInput          Status = 10
	StatusSensitiveInput Status = 11

	StatusSuccess Status = 20

	StatusRedirectTemporary Status = 30
	StatusRedirectPermanent Status = 31

	StatusTemporaryFailure  Status = 40
	StatusServerUnavailable Status = 41
	StatusCGIError          Status = 42
	StatusProxyError        Status = 43
	StatusSlowDown          Status = 44

	StatusPermanentFailure    Status = 50
	StatusNotFound            Status = 51
	StatusGone                Status = 52
	StatusProxyRequestRefused Status = 53
	StatusBadRequest          Status = 59

	StatusCertificateRequired      Status = 60
	StatusCertificateNotAuthorised Status = 61
	StatusCertificateNotValid      Status = 62
)

// Class returns the first digit of the status, which is all a client is
// required to understand.
func (s Status) Class() int {
	return int(s) / 10
}

// Valid reports whether s is in the two-digit range clients accept.
func (s Status) Valid() bool {
	return s >= 10 && s <= 69
}

func (s Status) String() string {
	switch s {
	case StatusInput:
		return "input"
	case StatusSensitiveInput:
		return "sensitive input"
	case StatusSuccess:
		return "success"
	case StatusRedirectTemporary:
		return "temporary redirect"
	case StatusRedirectPermanent:
		return "permanent redirect"
	case StatusTemporaryFailure:
		return "temporary failure"
	case StatusServerUnavailable:
		return "server unavailable"
	case StatusCGIError:
		return "cgi error"
	case StatusProxyError:
		return "proxy error"
	case StatusSlowDown:
		return "slow down"
	case StatusPermanentFailure:
		return "permanent failure"
	case StatusNotFound:
		return "not found"
	case StatusGone:
		return "gone"
	case StatusProxyRequestRefused:
		return "proxy request refused"
	case StatusBadRequest:
		return "bad request"
	case StatusCertificateRequired:
		return "client certificate required"
	case StatusCertificateNotAuthorised:
		return "certificate not authorised"
	case StatusCertificateNotValid:
		return "certificate not valid"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}
