package errors

import (
	"context"
	"errors"
	"strings"
)

// Category groups failures into the classes shown to users.
type Category string

const (
	CategoryCORS         Category = "cors"
	CategoryNetwork      Category = "network"
	CategorySecurity     Category = "security"
	CategoryPrecondition Category = "precondition"
	CategoryUnknown      Category = "unknown"
)

// Hint is appended to every categorized failure message.
const Hint = "Tip: Try refreshing the review to generate new images, or check your internet connection."

// Classify returns the failure category of err. Coded errors anywhere in the
// chain win; otherwise the message text is inspected, since browser-side
// failures only reach Go as strings.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var found Category
	walk(err, func(e *Error) bool {
		switch e.Code {
		case ErrCodeTargetNotFound, ErrCodeTargetZeroSize, ErrCodeTargetHidden:
			found = CategoryPrecondition
		case ErrCodeCORS:
			found = CategoryCORS
		case ErrCodeNetwork, ErrCodeTimeout, ErrCodeUpstream:
			found = CategoryNetwork
		case ErrCodeSecurity:
			found = CategorySecurity
		}
		return found != ""
	})
	if found != "" {
		return found
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "cors") || strings.Contains(msg, "cross-origin"):
		return CategoryCORS
	case strings.Contains(msg, "network") || strings.Contains(msg, "timeout"):
		return CategoryNetwork
	case strings.Contains(msg, "tainted") || strings.Contains(msg, "security"):
		return CategorySecurity
	}
	return CategoryUnknown
}

// Friendly renders the single message a user sees for a failed export.
// Precondition violations are returned verbatim; everything else gets a
// category-specific explanation and the retry hint.
func Friendly(err error) string {
	if err == nil {
		return ""
	}

	switch Classify(err) {
	case CategoryPrecondition:
		return preconditionMessage(err)
	case CategoryCORS:
		return "Some images could not be loaded due to CORS restrictions. The image was generated with a fallback avatar.\n\n" + Hint
	case CategoryNetwork:
		return "Network error while loading images. Please check your connection and try again.\n\n" + Hint
	case CategorySecurity:
		return "Some images were replaced with a generated avatar due to browser security restrictions.\n\n" + Hint
	}
	return UserMessage(err) + "\n\n" + Hint
}

func preconditionMessage(err error) string {
	var msg string
	walk(err, func(e *Error) bool {
		if IsPrecondition(e) {
			msg = e.Message
			return true
		}
		return false
	})
	if msg == "" {
		return UserMessage(err)
	}
	return msg
}

// walk visits every *Error in the chain until fn returns true.
func walk(err error, fn func(*Error) bool) {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return
		}
		if fn(e) {
			return
		}
		err = e.Cause
	}
}
