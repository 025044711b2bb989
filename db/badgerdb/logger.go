package badgerdb

import (
	"fmt"
	"strings"

	"github.com/argonprotocol/notary/log"
)

// extendedLog adapts the module logger to badger.Logger.
type extendedLog struct {
	*log.Logger
}

func (l *extendedLog) Errorf(f string, v ...interface{}) {
	l.Error().Msg(trim(f, v))
}

func (l *extendedLog) Warningf(f string, v ...interface{}) {
	l.Warn().Msg(trim(f, v))
}

func (l *extendedLog) Infof(f string, v ...interface{}) {
	// badger is chatty at info, keep it at debug
	l.Debug().Msg(trim(f, v))
}

func (l *extendedLog) Debugf(f string, v ...interface{}) {
	l.Debug().Msg(trim(f, v))
}

func trim(f string, v []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(f, v...))
}
