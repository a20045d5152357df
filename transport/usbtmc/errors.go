package usbtmc

import "errors"

var errShortHeader = errors.New("usbtmc: short bulk-in header")
