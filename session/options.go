package session

import "fmt"

// Default session attribute values (spec.md §3).
const (
	DefaultTimeout        = 2000 // milliseconds
	DefaultTermChar  byte = 0x0A
)

// attrs holds the per-session VISA attributes of spec.md §3.
type attrs struct {
	timeoutMillis  uint32
	termChar       byte
	termCharEnable bool
	sendEndEnable  bool
}

func defaultAttrs() attrs {
	return attrs{
		timeoutMillis:  DefaultTimeout,
		termChar:       DefaultTermChar,
		termCharEnable: false,
		sendEndEnable:  true,
	}
}

// Option is a functional option for Open, mirroring the teacher's
// secs1.ConnOption apply-to-struct pattern.
type Option interface {
	apply(*attrs) error
}

type optFunc func(*attrs) error

func (f optFunc) apply(a *attrs) error { return f(a) }

// WithTimeout sets VI_ATTR_TMO_VALUE in milliseconds.
func WithTimeout(millis uint32) Option {
	return optFunc(func(a *attrs) error {
		a.timeoutMillis = millis
		return nil
	})
}

// WithTermChar sets VI_ATTR_TERM_CHAR.
func WithTermChar(c byte) Option {
	return optFunc(func(a *attrs) error {
		a.termChar = c
		return nil
	})
}

// WithTermCharEnable sets VI_ATTR_TERM_CHAR_EN.
func WithTermCharEnable(enabled bool) Option {
	return optFunc(func(a *attrs) error {
		a.termCharEnable = enabled
		return nil
	})
}

// WithSendEndEnable sets VI_ATTR_SEND_END_EN.
func WithSendEndEnable(enabled bool) Option {
	return optFunc(func(a *attrs) error {
		a.sendEndEnable = enabled
		return nil
	})
}

func applyOptions(a *attrs, opts []Option) error {
	for _, opt := range opts {
		if err := opt.apply(a); err != nil {
			return fmt.Errorf("session: option: %w", err)
		}
	}
	return nil
}
