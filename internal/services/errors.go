package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient     = errors.New("transient failure")
	ErrMalformed     = errors.New("malformed payload")
	ErrRender        = errors.New("render failure")
	ErrDelivery      = errors.New("delivery failure")
	ErrPersistence   = errors.New("persistence unavailable")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err must stop the polling loop. Only persistence
// failures qualify; everything else is scoped to a single subscription.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// Hint returns an operator-facing remediation hint for a classified error.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrPersistence):
		return "check subscription database path and permissions"
	case errors.Is(err, ErrConfiguration):
		return "review config.toml"
	case errors.Is(err, ErrMalformed):
		return "platform payload shape changed; capture the response for inspection"
	case errors.Is(err, ErrRender):
		return "check render_dir is writable"
	case errors.Is(err, ErrDelivery):
		return "verify ntfy server reachability"
	case errors.Is(err, ErrNotFound):
		return "verify the creator uid exists"
	default:
		return "retried automatically next cycle"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
