// Package work defines the unit of work carried by queue messages and the
// delivery policy that governs how often one may be attempted.
package work

import (
	"encoding/json"
	"fmt"
	"path"
)

// Item is the parsed body of an ingestion message. ID doubles as the output
// filename stem; ImageURL is where the bytes come from.
type Item struct {
	ID       string `json:"id"`
	ImageURL string `json:"image_url"`
}

// ParseError reports a body that could not be decoded at all. Retried via
// redelivery, since a transient producer bug is not assumed.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse message body: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a decoded body missing a required field. The content
// of a message never changes across redeliveries, so this failure is permanent.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("message missing required field %q", e.Field)
}

// ParseItem decodes and validates a raw message body. Decode failures yield a
// *ParseError, missing required fields a *ValidationError.
func ParseItem(body []byte) (Item, error) {
	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return Item{}, &ParseError{Err: err}
	}
	if item.ID == "" {
		return Item{}, &ValidationError{Field: "id"}
	}
	if item.ImageURL == "" {
		return Item{}, &ValidationError{Field: "image_url"}
	}
	return item, nil
}

// InferExtension returns the file extension implied by the image URL's path
// suffix, defaulting to ".jpg" when the URL carries none. The URL is examined
// as a plain string, so malformed URLs still get a usable extension.
func InferExtension(url string) string {
	if ext := path.Ext(url); ext != "" {
		return ext
	}
	return ".jpg"
}
