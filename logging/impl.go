package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans every enabled entry out to its appenders. Entries are stamped in UTC.
type impl struct {
	name      string
	level     AtomicLevel
	appenders []Appender
}

func newImpl(name string, level Level, appenders ...Appender) *impl {
	return &impl{name: name, level: NewAtomicLevelAt(level), appenders: appenders}
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return newImpl(name, imp.level.Get(), imp.appenders...)
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

// write stamps and dispatches one entry. Only the print helpers may call it, see callerSkip.
func (imp *impl) write(level Level, msg string, fields []zapcore.Field) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now().UTC(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     caller(),
	}
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) print(level Level, args []interface{}) {
	if imp.enabled(level) {
		imp.write(level, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) printf(level Level, template string, args []interface{}) {
	if imp.enabled(level) {
		imp.write(level, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) printw(level Level, msg string, keysAndValues []interface{}) {
	if imp.enabled(level) {
		imp.write(level, msg, toFields(keysAndValues))
	}
}

// toFields pairs up alternating keys and values. A trailing key without a value is kept with an
// error in place of the value.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		var key string
		if stringer, ok := keysAndValues[i].(fmt.Stringer); ok {
			key = stringer.String()
		} else {
			key = fmt.Sprint(keysAndValues[i])
		}
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) {
	imp.print(DEBUG, args)
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.printf(DEBUG, template, args)
}

func (imp *impl) Debugw(msg string, kv ...interface{}) {
	imp.printw(DEBUG, msg, kv)
}

func (imp *impl) Info(args ...interface{}) {
	imp.print(INFO, args)
}

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.printf(INFO, template, args)
}

func (imp *impl) Infow(msg string, kv ...interface{}) {
	imp.printw(INFO, msg, kv)
}

func (imp *impl) Warn(args ...interface{}) {
	imp.print(WARN, args)
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.printf(WARN, template, args)
}

func (imp *impl) Warnw(msg string, kv ...interface{}) {
	imp.printw(WARN, msg, kv)
}

func (imp *impl) Error(args ...interface{}) {
	imp.print(ERROR, args)
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.printf(ERROR, template, args)
}

func (imp *impl) Errorw(msg string, kv ...interface{}) {
	imp.printw(ERROR, msg, kv)
}

// callerSkip is the depth of the user's frame below caller: write, print and a Logger method sit in between.
const callerSkip = 4

func caller() zapcore.EntryCaller {
	pc, file, line, ok := runtime.Caller(callerSkip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	c := zapcore.NewEntryCaller(pc, file, line, true)
	if fn := runtime.FuncForPC(pc); fn != nil {
		c.Function = fn.Name()
	}
	return c
}
