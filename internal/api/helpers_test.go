package api

import (
	"strconv"

	"veripass/internal/common/errors"
)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func errorCode(s string) errors.ErrorCode { return errors.ErrorCode(s) }
