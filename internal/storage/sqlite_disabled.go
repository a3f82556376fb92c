//go:build !sqlite
// +build !sqlite

package storage

import (
	"errors"

	logx "rallybot/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	return nil, errors.New("sqlite storage not available: rebuild with -tags sqlite")
}
