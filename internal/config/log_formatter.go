package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	colorRed         = 31
	colorGreen       = 32
	colorYellow      = 33
	colorBlue        = 36
	colorGray        = 37
	colorLightGreen  = 92
	colorLightYellow = 93
	colorCyan        = 96
)

// NbFormatter renders entries as colored key=value lines. The component field,
// when present, always comes first; other fields are sorted.
type NbFormatter struct {
	NoColor bool
}

func (f *NbFormatter) paint(color int, s string) string {
	if f.NoColor {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}

func (f *NbFormatter) Format(entry *log.Entry) ([]byte, error) {
	levelColor := colorBlue
	switch entry.Level {
	case log.DebugLevel, log.TraceLevel:
		levelColor = colorGray
	case log.WarnLevel:
		levelColor = colorYellow
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		levelColor = colorRed
	}

	var b strings.Builder
	f.field(&b, "level", f.paint(levelColor, strings.ToUpper(entry.Level.String())[:4]))
	f.field(&b, "ts", f.paint(colorLightYellow, entry.Time.Format("2006-01-02 15:04:05.000")))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != "component" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := entry.Data["component"]; ok {
		keys = append([]string{"component"}, keys...)
	}

	for _, k := range keys {
		s := encodeValue(entry.Data[k])
		if s == "" {
			continue
		}
		valueColor := colorCyan
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			valueColor = colorGreen
		} else if strings.HasPrefix(s, "\"") {
			valueColor = colorLightYellow
		}
		f.field(&b, k, f.paint(valueColor, s))
	}
	f.field(&b, "msg", f.paint(colorLightGreen, strconv.Quote(entry.Message)))

	output := strings.NewReplacer("\r", "\\r", "\n", "\\n").Replace(b.String())
	return []byte(output + "\n"), nil
}

func (f *NbFormatter) field(b *strings.Builder, key, value string) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(f.paint(colorCyan, key))
	b.WriteByte('=')
	b.WriteString(value)
}

func encodeValue(val any) string {
	if err, ok := val.(error); ok {
		val = err.Error()
	}
	m, err := json.Marshal(val)
	if err != nil {
		return ""
	}
	return string(m)
}
