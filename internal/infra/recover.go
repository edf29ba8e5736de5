package infra

import (
	"fmt"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Recover swallows a panic and logs it with the entry's fields and the
// panicking frame. It must be deferred directly: defer infra.Recover(entry, nil).
// onPanic, when set, runs after logging.
func Recover(entry *log.Entry, onPanic func(r any)) {
	r := recover()
	if r == nil {
		return
	}
	entry.WithFields(log.Fields{
		"panic": fmt.Sprint(r),
		"frame": identifyPanic(),
	}).Error("recovered from panic")
	if onPanic != nil {
		onPanic(r)
	}
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("%v:%v", file, line)
	}

	return fmt.Sprintf("pc:%x", pc)
}
