// Package reply holds the pure error-translation tables the engine
// layer uses to map its own collaborators' status codes onto the
// public event.ErrorCode vocabulary, matching client.c's
// translate_property_error/translate_option_error helpers.
package reply

import "github.com/coreplay/playerctl/event"

// PropertyStatus is the result vocabulary of the property-store
// collaborator (out of scope to implement in full — this is its
// narrow status surface).
type PropertyStatus int

const (
	PropertyOK PropertyStatus = iota
	PropertyError
	PropertyUnavailable
	PropertyNotImplemented
	PropertyUnknown
)

// TranslatePropertyError maps a property-store status to the public
// ErrorCode vocabulary, matching client.c's translate_property_error:
// Ok -> 0, Error|NotImplemented -> Property, Unavailable ->
// PropertyUnavailable, Unknown -> NotFound.
func TranslatePropertyError(s PropertyStatus) event.ErrorCode {
	switch s {
	case PropertyOK:
		return event.Success
	case PropertyUnavailable:
		return event.ErrPropertyUnavailable
	case PropertyUnknown:
		return event.ErrNotFound
	case PropertyError, PropertyNotImplemented:
		return event.ErrProperty
	default:
		return event.ErrProperty
	}
}

// OptionStatus is the result vocabulary of the option-store
// collaborator (applied only before Initialize).
type OptionStatus int

const (
	OptionOK OptionStatus = iota
	OptionMissingParam
	OptionInvalid
	OptionOutOfRange
	OptionUnknown
)

// TranslateOptionError maps an option-store status to the public
// ErrorCode vocabulary, matching client.c's option-setting error path.
func TranslateOptionError(s OptionStatus) event.ErrorCode {
	switch s {
	case OptionOK:
		return event.Success
	case OptionUnknown:
		return event.ErrNotFound
	case OptionMissingParam, OptionInvalid, OptionOutOfRange:
		return event.ErrInvalidParameter
	default:
		return event.ErrProperty
	}
}
