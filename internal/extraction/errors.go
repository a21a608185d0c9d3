package extraction

import "fmt"

type Kind string

const (
	KindParsing         Kind = "PARSING_ERROR"
	KindLowConfidence   Kind = "LOW_CONFIDENCE"
	KindInvalidDocument Kind = "INVALID_DOCUMENT_TYPE"
)

// ParseError reports an extraction that completed but produced nothing usable.
// Transport failures are returned as plain errors.
type ParseError struct {
	Kind       Kind
	Message    string
	Confidence float64
	Err        error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parsingError(message string, err error) *ParseError {
	return &ParseError{Kind: KindParsing, Message: message, Err: err}
}
