package scan

import "errors"

var ErrNilView = errors.New("scan: nil view")
