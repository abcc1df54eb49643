package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// StatusFormatter renders logrus entries as status records, so diagnostic
// logging reaches the parent on the same channel as presence events.
// Fields are appended to the message as key=value pairs.
type StatusFormatter struct {
	// Level prefixes warnings and errors with their level.
	Level bool
}

func (f *StatusFormatter) Format(e *log.Entry) ([]byte, error) {
	var sb strings.Builder
	if f.Level && e.Level <= log.WarnLevel {
		sb.WriteString(strings.ToUpper(e.Level.String()))
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := e.Data[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		fmt.Fprintf(&sb, " %s=%v", k, v)
	}

	b, err := json.Marshal(map[string]string{"status": sb.String()})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
